package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/tenderflow/internal/config"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// ArchiverFunction bundles every PDF of a tender into one zip.
type ArchiverFunction struct {
	documents objectstore.Store
	stack     *Stack
}

func NewArchiver(ctx context.Context) (*ArchiverFunction, error) {
	stack, err := NewStack(ctx, config.Load())
	if err != nil {
		return nil, err
	}
	return &ArchiverFunction{documents: stack.Documents, stack: stack}, nil
}

func NewArchiverWith(documents objectstore.Store) *ArchiverFunction {
	return &ArchiverFunction{documents: documents}
}

func (f *ArchiverFunction) Close() error {
	if f.stack != nil {
		return f.stack.Close()
	}
	return nil
}

// Process returns the archive name and bytes. Entries are named relative to the tender prefix, in listing order.
func (f *ArchiverFunction) Process(ctx context.Context, tenderID string) (string, []byte, error) {
	if err := pipeline.ValidateTenderID(tenderID); err != nil {
		return "", nil, err
	}
	logCtx := slog.With("tenderId", tenderID)
	prefix := objectstore.TenderPrefix(tenderID)

	keys, err := f.documents.List(ctx, prefix)
	if err != nil {
		logCtx.Error("Failed to list tender documents", "error", err)
		return "", nil, fmt.Errorf("failed to list documents for tender %s: %w", tenderID, err)
	}
	keys = objectstore.PDFKeys(keys)
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("%w: %s", pipeline.ErrNoDocuments, tenderID)
	}

	contents := make([][]byte, len(keys))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)
	for i, key := range keys {
		eg.Go(func() error {
			data, err := f.documents.Fetch(gctx, key)
			if err != nil {
				return err
			}
			contents[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to fetch documents", "error", err)
		return "", nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for i, key := range keys {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     objectstore.DocumentName(tenderID, key),
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to add %s to archive: %w", key, err)
		}
		if _, err := w.Write(contents[i]); err != nil {
			return "", nil, fmt.Errorf("failed to write %s to archive: %w", key, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	logCtx.Info("Archive built.", "documents", len(keys), "bytes", buf.Len())
	return fmt.Sprintf("tender_%s.zip", tenderID), buf.Bytes(), nil
}
