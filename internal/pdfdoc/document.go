// Package pdfdoc opens tender PDFs, decides page modality and renders scanned pages for the image backend.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ScannedTextThreshold is the trimmed text length below which a page counts as scanned.
const ScannedTextThreshold = 10

var ErrInvalidPage = errors.New("page number out of range")

// Page is one page of a document. Modality is fixed when the document is opened.
type Page struct {
	Number  int
	Text    string
	Scanned bool
}

// IsScanned reports whether text is too short to be a text-bearing page.
func IsScanned(text string) bool {
	return len(strings.TrimSpace(text)) < ScannedTextThreshold
}

// Document is an opened PDF with per-page text and modality.
// It is safe for concurrent RenderPage calls.
type Document struct {
	Name  string
	Pages []Page

	data   []byte
	logger *slog.Logger

	renderOnce sync.Once
	renderCtx  *model.Context
	renderErr  error
	renderMu   sync.Mutex
	dims       []types.Dim
}

// Option configures a Document.
type Option func(*Document)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Open parses data and extracts the text of every page.
// A page whose text cannot be extracted is treated as scanned.
func Open(name string, data []byte, opts ...Option) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse %s: %v", name, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", name, err)
	}

	n := reader.NumPage()
	doc = &Document{Name: name, data: data, logger: slog.Default(), Pages: make([]Page, 0, n)}
	for _, opt := range opts {
		opt(doc)
	}
	for i := 1; i <= n; i++ {
		text := doc.pageText(reader, i)
		doc.Pages = append(doc.Pages, Page{
			Number:  i,
			Text:    text,
			Scanned: IsScanned(text),
		})
	}
	return doc, nil
}

func (d *Document) pageText(reader *pdf.Reader, pageNr int) string {
	p := reader.Page(pageNr)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		d.logger.Debug("Text extraction failed, treating page as scanned.", "page", pageNr, "error", err)
		return ""
	}
	return text
}

func (d *Document) PageCount() int { return len(d.Pages) }

// Size is the document size in bytes.
func (d *Document) Size() int { return len(d.data) }

// Bytes returns the raw PDF.
func (d *Document) Bytes() []byte { return d.data }

func (d *Document) context() (*model.Context, error) {
	d.renderOnce.Do(func() {
		d.renderCtx, d.renderErr = readContext(d.data)
		if d.renderErr != nil {
			return
		}
		dims, err := d.renderCtx.PageDims()
		if err != nil {
			d.logger.Warn("Failed to read page sizes, rendering at letter size.", "error", err)
			return
		}
		d.dims = dims
	})
	return d.renderCtx, d.renderErr
}
