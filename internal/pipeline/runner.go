package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
	"github.com/Lllllllleong/tenderflow/internal/progress"
)

var (
	ErrNoDocuments     = errors.New("tender has no documents")
	ErrInvalidTenderID = errors.New("invalid tender id")
)

// DocumentHandler is the per-variant part of a tender run.
type DocumentHandler interface {
	// Reset clears results a previous, unfinished attempt may have left behind.
	Reset(ctx context.Context, tenderID, name string) error
	// Handle processes one opened, non-empty document.
	Handle(ctx context.Context, tenderID string, doc *pdfdoc.Document) (models.DocumentOutcome, error)
}

// Runner processes every document of a tender once, skipping those the ledger already has.
type Runner struct {
	documents objectstore.Store
	progress  progress.Store
	handler   DocumentHandler
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(documents objectstore.Store, ledger progress.Store, handler DocumentHandler, opts ...RunnerOption) *Runner {
	r := &Runner{documents: documents, progress: ledger, handler: handler, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateTenderID rejects ids that would escape the tender's key prefix.
func ValidateTenderID(tenderID string) error {
	if strings.TrimSpace(tenderID) == "" || strings.ContainsAny(tenderID, "/\\") || tenderID == "." || tenderID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidTenderID, tenderID)
	}
	return nil
}

// Run processes the tender's documents one at a time, in listing order.
// Only a listing failure, an empty tender or cancellation fail the run;
// every per-document problem is recorded in the report instead.
func (r *Runner) Run(ctx context.Context, tenderID string) (*models.ProcessingReport, error) {
	if err := ValidateTenderID(tenderID); err != nil {
		return nil, err
	}
	report := models.NewProcessingReport(tenderID)
	logCtx := r.logger.With("tenderId", tenderID, "runId", report.RunID)

	keys, err := r.documents.List(ctx, objectstore.TenderPrefix(tenderID))
	if err != nil {
		logCtx.Error("Failed to list tender documents", "error", err)
		return nil, fmt.Errorf("failed to list documents for tender %s: %w", tenderID, err)
	}
	keys = objectstore.PDFKeys(keys)
	if len(keys) == 0 {
		logCtx.Warn("No documents found for tender.")
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, tenderID)
	}
	logCtx.Info("Starting tender run.", "documentCount", len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			logCtx.Error("Tender run cancelled.", "error", err)
			return nil, fmt.Errorf("tender run cancelled: %w", err)
		}
		name := objectstore.DocumentName(tenderID, key)
		docLog := logCtx.With("document", name)

		done, err := r.progress.IsComplete(ctx, tenderID, name)
		if err != nil {
			docLog.Error("Failed to read progress", "error", err)
			report.Fail(name, fmt.Errorf("failed to read progress: %w", err))
			continue
		}
		if done {
			docLog.Info("Document already complete. Skipping.")
			report.Skip()
			continue
		}

		if err := r.processDocument(ctx, docLog, report, tenderID, key, name); err != nil {
			docLog.Error("Document failed.", "error", err)
			report.Fail(name, err)
		}
	}

	report.Finish()
	logCtx.Info("Tender run complete.",
		"processed", report.ProcessedDocs,
		"skipped", report.SkippedDocs,
		"aborted", report.AbortedDocs,
		"pageErrors", report.TotalPageErrors,
	)
	return report, nil
}

func (r *Runner) processDocument(ctx context.Context, logCtx *slog.Logger, report *models.ProcessingReport, tenderID, key, name string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logCtx.Error("Recovered panic while processing document.", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", p)
		}
	}()

	if err := r.handler.Reset(ctx, tenderID, name); err != nil {
		return fmt.Errorf("failed to clear previous results: %w", err)
	}
	data, err := r.documents.Fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch document: %w", err)
	}
	doc, err := pdfdoc.Open(name, data, pdfdoc.WithLogger(logCtx))
	if err != nil {
		return err
	}
	if doc.PageCount() == 0 {
		logCtx.Warn("Empty PDF, skipping.")
		report.Empty()
		return nil
	}

	logCtx.Info("Processing document.", "pages", doc.PageCount(), "bytes", doc.Size())
	outcome, err := r.handler.Handle(ctx, tenderID, doc)
	if err != nil {
		return err
	}
	if outcome.Aborted {
		logCtx.Warn("Document aborted: page error budget exceeded.", "pageErrors", outcome.PageErrors)
		report.Abort(name, outcome)
		return nil
	}

	if err := r.progress.MarkComplete(ctx, tenderID, name, outcome.FormPages); err != nil {
		return fmt.Errorf("failed to mark document complete: %w", err)
	}
	report.Complete(name, outcome)
	logCtx.Info("Document complete.",
		"scannedPages", outcome.ScannedPages,
		"regularPages", outcome.RegularPages,
		"pageErrors", outcome.PageErrors,
	)
	return nil
}
