// Package objectstore names where tender documents live and reads them back from a bucket or a local directory.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

const (
	DocumentsPrefix = "tender-documents/"
	ExportsPrefix   = "exports/"
)

var ErrNotFound = errors.New("object not found")

// Store lists and fetches objects by slash-separated key.
type Store interface {
	// List returns every key under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Writer stores an object, replacing any previous content under the same key.
type Writer interface {
	Put(ctx context.Context, key string, data []byte) error
}

func TenderPrefix(tenderID string) string {
	return DocumentsPrefix + tenderID + "/"
}

func DocumentKey(tenderID, name string) string {
	return TenderPrefix(tenderID) + name
}

func ExportKey(name string) string {
	return ExportsPrefix + name
}

// DocumentName is key relative to the tender prefix, so nested documents keep distinct names.
// Keys outside the prefix are returned unchanged.
func DocumentName(tenderID, key string) string {
	return strings.TrimPrefix(key, TenderPrefix(tenderID))
}

// TenderIDFromKey returns the tender a document key belongs to, or false when key is not a tender document.
func TenderIDFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, DocumentsPrefix)
	if !ok {
		return "", false
	}
	tenderID, name, ok := strings.Cut(rest, "/")
	if !ok || tenderID == "" || name == "" {
		return "", false
	}
	return tenderID, true
}

// IsPDF reports whether key names a PDF, ignoring case.
func IsPDF(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".pdf")
}

// PDFKeys keeps the PDF keys, preserving order.
func PDFKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if IsPDF(k) {
			out = append(out, k)
		}
	}
	return out
}
