package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/tenderflow/internal/config"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/pipeline"
	"github.com/Lllllllleong/tenderflow/internal/progress"
)

// TenderRunner is the part of pipeline.Runner the functions need.
type TenderRunner interface {
	Run(ctx context.Context, tenderID string) (*models.ProcessingReport, error)
}

// FormExtractorFunction classifies the pages of every unfinished document of a tender.
type FormExtractorFunction struct {
	runner TenderRunner
	stack  *Stack
}

func NewFormExtractor(ctx context.Context) (*FormExtractorFunction, error) {
	stack, err := NewStack(ctx, config.Load())
	if err != nil {
		return nil, err
	}
	f, err := NewFormExtractorWithStack(ctx, stack)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	return f, nil
}

func NewFormExtractorWithStack(ctx context.Context, stack *Stack) (*FormExtractorFunction, error) {
	ledger, err := stack.Ledger(ctx, progress.LedgerForms)
	if err != nil {
		return nil, fmt.Errorf("failed to open forms ledger: %w", err)
	}
	image, text, err := stack.Backends(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference backends: %w", err)
	}
	d, err := stack.Dispatcher()
	if err != nil {
		return nil, err
	}
	handler := pipeline.NewFormHandler(d, image, text, pipeline.ErrorBudget(stack.Settings.PageErrorBudget))
	slog.Info("Form extractor initialized.", "imageBackend", stack.Settings.ImageBackend, "textBackend", stack.Settings.TextBackend)
	return &FormExtractorFunction{runner: pipeline.NewRunner(stack.Documents, ledger, handler), stack: stack}, nil
}

func (f *FormExtractorFunction) Process(ctx context.Context, req *models.TenderRequest) (*models.ProcessingReport, error) {
	return runTender(ctx, f.runner, req, "form extraction")
}

func (f *FormExtractorFunction) Close() error { return f.stack.Close() }

// TenderEmbedderFunction transcribes, chunks and embeds every unfinished document of a tender.
type TenderEmbedderFunction struct {
	runner TenderRunner
	stack  *Stack
}

func NewTenderEmbedder(ctx context.Context) (*TenderEmbedderFunction, error) {
	stack, err := NewStack(ctx, config.Load())
	if err != nil {
		return nil, err
	}
	f, err := NewTenderEmbedderWithStack(ctx, stack)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	return f, nil
}

func NewTenderEmbedderWithStack(ctx context.Context, stack *Stack) (*TenderEmbedderFunction, error) {
	ledger, err := stack.Ledger(ctx, progress.LedgerDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to open documents ledger: %w", err)
	}
	image, text, err := stack.Backends(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference backends: %w", err)
	}
	embedder, err := stack.Embedder()
	if err != nil {
		return nil, err
	}
	chunks, err := stack.ChunkStore(ctx)
	if err != nil {
		return nil, err
	}
	d, err := stack.Dispatcher()
	if err != nil {
		return nil, err
	}
	handler := pipeline.NewEmbeddingHandler(d, image, text, embedder, chunks, pipeline.ErrorBudget(stack.Settings.PageErrorBudget))
	slog.Info("Tender embedder initialized.", "embeddingBackend", stack.Settings.EmbeddingBackend, "chunkBackend", stack.Settings.ChunkBackend)
	return &TenderEmbedderFunction{runner: pipeline.NewRunner(stack.Documents, ledger, handler), stack: stack}, nil
}

func (f *TenderEmbedderFunction) Process(ctx context.Context, req *models.TenderRequest) (*models.ProcessingReport, error) {
	return runTender(ctx, f.runner, req, "embedding")
}

func (f *TenderEmbedderFunction) Close() error { return f.stack.Close() }

func runTender(ctx context.Context, runner TenderRunner, req *models.TenderRequest, operation string) (*models.ProcessingReport, error) {
	logCtx := slog.With("tenderId", req.TenderID, "executionId", req.ExecutionID, "operation", operation)
	logCtx.Info("Starting tender run.")

	report, err := runner.Run(ctx, req.TenderID)
	if err != nil {
		logCtx.Error("Tender run failed", "error", err)
		return nil, err
	}
	logCtx.Info("Tender run finished.", "runId", report.RunID, "processed", report.ProcessedDocs, "errors", len(report.Errors))
	return report, nil
}

// HTTPStatus maps a whole-invocation error to the response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTenderID):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoDocuments),
		errors.Is(err, objectstore.ErrNotFound),
		errors.Is(err, ErrNothingToExport):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
