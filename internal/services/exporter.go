package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Lllllllleong/tenderflow/internal/config"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
	"github.com/Lllllllleong/tenderflow/internal/pipeline"
	"github.com/Lllllllleong/tenderflow/internal/progress"
	"golang.org/x/sync/errgroup"
)

var ErrNothingToExport = errors.New("no form pages to export")

// ExportResult is a merged PDF of a tender's form pages.
type ExportResult struct {
	Filename string
	Data     []byte
	Pages    int
	// Key is set when the file was also written to the document store.
	Key string
}

// FormExporterFunction merges the form pages of a tender's documents into a single PDF.
type FormExporterFunction struct {
	documents objectstore.Store
	exports   objectstore.Writer
	ledger    progress.Store
	stack     *Stack
}

func NewFormExporter(ctx context.Context) (*FormExporterFunction, error) {
	stack, err := NewStack(ctx, config.Load())
	if err != nil {
		return nil, err
	}
	ledger, err := stack.Ledger(ctx, progress.LedgerForms)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("failed to open forms ledger: %w", err)
	}
	f := NewFormExporterWith(stack.Documents, stack.Exports, ledger)
	f.stack = stack
	return f, nil
}

func NewFormExporterWith(documents objectstore.Store, exports objectstore.Writer, ledger progress.Store) *FormExporterFunction {
	return &FormExporterFunction{documents: documents, exports: exports, ledger: ledger}
}

func (f *FormExporterFunction) Close() error {
	if f.stack != nil {
		return f.stack.Close()
	}
	return nil
}

// Process exports req.Forms, or the page lists in the forms ledger when req.Forms is empty.
// Page numbers outside a document are skipped; a listed document that does not exist is an error.
func (f *FormExporterFunction) Process(ctx context.Context, req *models.FormExportRequest) (*ExportResult, error) {
	if err := pipeline.ValidateTenderID(req.TenderID); err != nil {
		return nil, err
	}
	logCtx := slog.With("tenderId", req.TenderID)

	forms := req.Forms
	if len(forms) == 0 {
		rec, err := f.ledger.Record(ctx, req.TenderID)
		if err != nil {
			return nil, err
		}
		forms = rec.Forms
		logCtx.Info("Using form pages from the ledger.", "documents", len(forms))
	}

	var names []string
	for name, pages := range forms {
		if len(pages) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	parts := make([][]byte, len(names))
	pageCounts := make([]int, len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)
	for i, name := range names {
		eg.Go(func() error {
			data, err := f.documents.Fetch(gctx, objectstore.DocumentKey(req.TenderID, name))
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			count, err := pdfdoc.CountPages(data)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			valid := pdfdoc.ValidPages(forms[name], count)
			if skipped := len(forms[name]) - len(valid); skipped > 0 {
				logCtx.Warn("Skipping invalid page numbers.", "document", name, "skipped", skipped, "pageCount", count)
			}
			subset, err := pdfdoc.ExtractPages(data, valid)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			parts[i], pageCounts[i] = subset, len(valid)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to collect form pages", "error", err)
		return nil, fmt.Errorf("failed to collect form pages: %w", err)
	}

	var nonEmpty [][]byte
	total := 0
	for i, p := range parts {
		if p != nil {
			nonEmpty = append(nonEmpty, p)
			total += pageCounts[i]
		}
	}
	if len(nonEmpty) == 0 {
		logCtx.Warn("Nothing to export.")
		return nil, fmt.Errorf("%w: tender %s", ErrNothingToExport, req.TenderID)
	}

	merged, err := pdfdoc.Merge(nonEmpty)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{
		Filename: fmt.Sprintf("tender_%s_forms.pdf", req.TenderID),
		Data:     merged,
		Pages:    total,
	}
	if req.Upload && f.exports != nil {
		res.Key = objectstore.ExportKey(res.Filename)
		if err := f.exports.Put(ctx, res.Key, merged); err != nil {
			logCtx.Error("Failed to upload export", "error", err, "key", res.Key)
			return nil, err
		}
	}
	logCtx.Info("Form export complete.", "documents", len(nonEmpty), "pages", total)
	return res, nil
}
