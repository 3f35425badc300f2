package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/pageops"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
	"github.com/Lllllllleong/tenderflow/internal/vectorstore"
	"github.com/tmc/langchaingo/embeddings"
)

// EmbeddingHandler transcribes a document batch by batch, then chunks, embeds and stores each batch
// before starting the next one.
type EmbeddingHandler struct {
	dispatcher *dispatch.Dispatcher
	image      inference.ImageBackend
	text       inference.TextBackend
	embedder   embeddings.Embedder
	chunks     vectorstore.Store
	budget     ErrorBudget
	planner    BatchPlanner
	chunker    pageops.Chunker
	logger     *slog.Logger
}

type EmbeddingOption func(*EmbeddingHandler)

func WithBatchPlanner(p BatchPlanner) EmbeddingOption {
	return func(h *EmbeddingHandler) { h.planner = p }
}

func WithChunker(c pageops.Chunker) EmbeddingOption {
	return func(h *EmbeddingHandler) { h.chunker = c }
}

func WithEmbeddingLogger(logger *slog.Logger) EmbeddingOption {
	return func(h *EmbeddingHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewEmbeddingHandler(
	d *dispatch.Dispatcher,
	image inference.ImageBackend,
	text inference.TextBackend,
	embedder embeddings.Embedder,
	chunks vectorstore.Store,
	budget ErrorBudget,
	opts ...EmbeddingOption,
) *EmbeddingHandler {
	h := &EmbeddingHandler{
		dispatcher: d,
		image:      image,
		text:       text,
		embedder:   embedder,
		chunks:     chunks,
		budget:     budget,
		planner:    DefaultBatchPlanner(),
		chunker:    pageops.Chunker{MaxRunes: pageops.DefaultMaxChunkRunes},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Reset drops chunks a previous unfinished run stored for the document.
func (h *EmbeddingHandler) Reset(ctx context.Context, tenderID, name string) error {
	return h.chunks.DeleteResults(ctx, tenderID, name)
}

// Handle stops launching batches once the cumulative page errors exceed the budget.
// Chunks already stored for an aborted document stay until the next run's Reset.
func (h *EmbeddingHandler) Handle(ctx context.Context, tenderID string, doc *pdfdoc.Document) (models.DocumentOutcome, error) {
	op := pageops.NewTranscriber(h.image, h.text, doc)
	size := h.planner.BatchSize(doc.PageCount(), doc.Size())
	logCtx := h.logger.With("tenderId", tenderID, "document", doc.Name)
	logCtx.Info("Embedding document.", "batchSize", size)

	outcome := models.DocumentOutcome{Embedded: true}
	for start := 0; start < len(doc.Pages); start += size {
		batch := doc.Pages[start:min(start+size, len(doc.Pages))]
		result := ProcessPages[string](ctx, h.dispatcher, op, batch)
		outcome.ScannedPages += result.ScannedPages
		outcome.RegularPages += result.RegularPages
		outcome.PageErrors += result.PageErrors

		if h.budget.Exceeded(outcome.PageErrors) {
			outcome.Aborted = true
			return outcome, nil
		}

		var chunks []models.Chunk
		for _, p := range result.Succeeded() {
			chunks = append(chunks, h.chunker.Split(tenderID, doc.Name, p.Page.Number, p.Page.Scanned, p.Value)...)
		}
		if len(chunks) == 0 {
			continue
		}
		if err := h.store(ctx, chunks); err != nil {
			return outcome, fmt.Errorf("failed to store pages %d-%d: %w", batch[0].Number, batch[len(batch)-1].Number, err)
		}
		outcome.Chunks += len(chunks)
		logCtx.Info("Stored batch.", "firstPage", batch[0].Number, "chunks", len(chunks))
	}
	return outcome, nil
}

func (h *EmbeddingHandler) store(ctx context.Context, chunks []models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := h.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	embedded := make([]models.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		embedded[i] = models.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
	}
	return h.chunks.Save(ctx, embedded)
}
