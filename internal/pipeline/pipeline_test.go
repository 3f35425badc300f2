package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc/pdftest"
	"github.com/Lllllllleong/tenderflow/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPlanner(t *testing.T) {
	p := DefaultBatchPlanner()
	assert.Equal(t, 20, p.BatchSize(100, 10*1024*1024))
	assert.Equal(t, 5, p.BatchSize(100, 50*1024*1024))
	assert.Equal(t, 20, p.BatchSize(0, 0))
	assert.Equal(t, 1, BatchPlanner{}.BatchSize(1, 1))
}

func TestErrorBudget(t *testing.T) {
	assert.False(t, DefaultErrorBudget.Exceeded(3))
	assert.True(t, DefaultErrorBudget.Exceeded(4))
	assert.True(t, ErrorBudget(0).Exceeded(1))
}

func TestValidateTenderID(t *testing.T) {
	assert.NoError(t, ValidateTenderID("T1"))
	for _, id := range []string{"", "  ", "a/b", "..", `a\b`} {
		assert.ErrorIs(t, ValidateTenderID(id), ErrInvalidTenderID, "id %q", id)
	}
}

func TestFormRunClassifiesAndResumes(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T1", "doc.pdf", pdftest.MustBuild(
		pdftest.Text("General conditions of contract"),
		pdftest.Scan(64, 48),
		pdftest.Text("Schedule of rates for works"),
	))
	image := &fakeImage{answer: "FORM"}
	text := &fakeText{formMarker: "Bid Form"}
	ledger := newLedger(t, progress.LedgerForms)
	runner := NewRunner(docs, ledger, NewFormHandler(newDispatcher(t), image, text, DefaultErrorBudget))

	report, err := runner.Run(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedDocs)
	assert.Equal(t, 1, report.ScannedPages)
	assert.Equal(t, 2, report.RegularPages)
	assert.Zero(t, report.TotalPageErrors)
	assert.Empty(t, report.Errors)
	assert.Equal(t, map[string][]int{"doc.pdf": {2}}, report.FormPages)

	rec, err := ledger.Record(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.pdf"}, rec.Completed)
	assert.Equal(t, []int{2}, rec.Forms["doc.pdf"])

	imageCalls, textCalls := image.calls.Load(), text.calls.Load()
	assert.Equal(t, int32(1), imageCalls)
	assert.Equal(t, int32(2), textCalls)

	again, err := runner.Run(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.SkippedDocs)
	assert.Zero(t, again.ProcessedDocs)
	assert.Empty(t, again.FormPages)
	assert.Equal(t, imageCalls, image.calls.Load())
	assert.Equal(t, textCalls, text.calls.Load())
	assert.NotEqual(t, report.RunID, again.RunID)
}

func TestFormPagesAreAnOrderedSubset(t *testing.T) {
	var pages []pdftest.Page
	for i := 1; i <= 12; i++ {
		if i%3 == 0 {
			pages = append(pages, pdftest.Text(fmt.Sprintf("Bid Form schedule %d", i)))
		} else {
			pages = append(pages, pdftest.Text(fmt.Sprintf("Technical clause number %d", i)))
		}
	}
	doc, err := pdfdoc.Open("specs.pdf", pdftest.MustBuild(pages...))
	require.NoError(t, err)

	h := NewFormHandler(newDispatcher(t), &fakeImage{}, &fakeText{formMarker: "Bid Form"}, DefaultErrorBudget)
	outcome, err := h.Handle(context.Background(), "T1", doc)
	require.NoError(t, err)
	assert.False(t, outcome.Aborted)
	assert.Equal(t, []int{3, 6, 9, 12}, outcome.FormPages)
	assert.Equal(t, 12, outcome.RegularPages)
}

func TestBudgetExceededDocumentIsNeverMarked(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T2", "bad.pdf", pdftest.MustBuild(
		pdftest.Text("Corrupted annex one"),
		pdftest.Text("Corrupted annex two"),
		pdftest.Text("Corrupted annex three"),
		pdftest.Text("Corrupted annex four"),
		pdftest.Text("Bid Form for security"),
	))
	docs.add("T2", "good.pdf", pdftest.MustBuild(
		pdftest.Text("Corrupted annex five"),
		pdftest.Text("Bid Form declaration"),
	))
	text := &fakeText{formMarker: "Bid Form", failMarker: "Corrupted annex"}
	ledger := newLedger(t, progress.LedgerForms)
	runner := NewRunner(docs, ledger, NewFormHandler(newDispatcher(t), &fakeImage{}, text, DefaultErrorBudget))

	report, err := runner.Run(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, 1, report.AbortedDocs)
	assert.Equal(t, 1, report.ProcessedDocs)
	assert.Equal(t, 5, report.TotalPageErrors)
	assert.Equal(t, []string{
		"bad.pdf aborted due to 4 page errors",
		"good.pdf had 1 page errors",
	}, report.Errors)
	assert.Equal(t, map[string][]int{"good.pdf": {2}}, report.FormPages)

	done, err := ledger.IsComplete(ctx, "T2", "bad.pdf")
	require.NoError(t, err)
	assert.False(t, done)

	before := text.calls.Load()
	again, err := runner.Run(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, 1, again.SkippedDocs)
	assert.Equal(t, 1, again.AbortedDocs)
	assert.Equal(t, before+5, text.calls.Load())
}

func TestBlankPagesAreClassifiedNotErrors(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T7", "doc.pdf", pdftest.MustBuild(
		pdftest.Text("Invitation to bid for pipeline works"),
		pdftest.Blank(), pdftest.Blank(), pdftest.Blank(), pdftest.Blank(),
	))
	image := &fakeImage{answer: "OTHER"}
	ledger := newLedger(t, progress.LedgerForms)
	runner := NewRunner(docs, ledger, NewFormHandler(newDispatcher(t), image, &fakeText{}, DefaultErrorBudget))

	report, err := runner.Run(ctx, "T7")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedDocs)
	assert.Zero(t, report.AbortedDocs)
	assert.Equal(t, 4, report.ScannedPages)
	assert.Zero(t, report.TotalPageErrors)
	assert.Empty(t, report.Errors)
	assert.Equal(t, map[string][]int{"doc.pdf": {}}, report.FormPages)
	assert.Equal(t, int32(4), image.calls.Load())

	done, err := ledger.IsComplete(ctx, "T7", "doc.pdf")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestNestedDocumentsWithTheSameBaseNameAreDistinct(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T8", "lot-a/bid.pdf", pdftest.MustBuild(pdftest.Text("Bid Form for lot A")))
	docs.add("T8", "lot-b/bid.pdf", pdftest.MustBuild(pdftest.Text("Scope of works for lot B")))
	ledger := newLedger(t, progress.LedgerForms)
	runner := NewRunner(docs, ledger, NewFormHandler(newDispatcher(t), &fakeImage{}, &fakeText{formMarker: "Bid Form"}, DefaultErrorBudget))

	report, err := runner.Run(ctx, "T8")
	require.NoError(t, err)
	assert.Equal(t, 2, report.ProcessedDocs)
	assert.Zero(t, report.SkippedDocs)
	assert.Equal(t, map[string][]int{"lot-a/bid.pdf": {1}, "lot-b/bid.pdf": {}}, report.FormPages)

	rec, err := ledger.Record(ctx, "T8")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lot-a/bid.pdf", "lot-b/bid.pdf"}, rec.Completed)
}

func TestRunnerTenderLevelErrors(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t, progress.LedgerForms)
	handler := NewFormHandler(newDispatcher(t), &fakeImage{}, &fakeText{}, DefaultErrorBudget)

	_, err := NewRunner(newMemStore(), ledger, handler).Run(ctx, "../T1")
	assert.ErrorIs(t, err, ErrInvalidTenderID)

	failing := newMemStore()
	failing.listErr = errors.New("bucket unavailable")
	_, err = NewRunner(failing, ledger, handler).Run(ctx, "T1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")

	notes := newMemStore()
	notes.add("T1", "readme.txt", []byte("not a pdf"))
	_, err = NewRunner(notes, ledger, handler).Run(ctx, "T1")
	assert.ErrorIs(t, err, ErrNoDocuments)

	docs := newMemStore()
	docs.add("T1", "doc.pdf", pdftest.MustBuild(pdftest.Text("General conditions of contract")))
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewRunner(docs, ledger, handler).Run(cancelled, "T1")
	assert.ErrorIs(t, err, context.Canceled)
}

type panicHandler struct{}

func (panicHandler) Reset(ctx context.Context, tenderID, name string) error { return nil }

func (panicHandler) Handle(ctx context.Context, tenderID string, doc *pdfdoc.Document) (models.DocumentOutcome, error) {
	panic("renderer exploded")
}

func TestRunnerDocumentErrorsDoNotStopTheTender(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T3", "missing.pdf", nil)
	docs.add("T3", "broken.pdf", []byte("definitely not a pdf"))
	docs.add("T3", "ok.pdf", pdftest.MustBuild(pdftest.Text("Instructions to bidders")))
	ledger := newLedger(t, progress.LedgerForms)
	text := &fakeText{}

	report, err := NewRunner(docs, ledger, NewFormHandler(newDispatcher(t), &fakeImage{}, text, DefaultErrorBudget)).Run(ctx, "T3")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedDocs)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "missing.pdf: failed to fetch document")
	assert.Contains(t, report.Errors[1], "broken.pdf: ")
	assert.Equal(t, map[string][]int{"ok.pdf": {}}, report.FormPages)

	report, err = NewRunner(docs, newLedger(t, progress.LedgerForms), panicHandler{}).Run(ctx, "T3")
	require.NoError(t, err)
	assert.Zero(t, report.ProcessedDocs)
	require.Len(t, report.Errors, 3)
	assert.Equal(t, "ok.pdf: internal error: renderer exploded", report.Errors[2])
}

func TestEmbeddingRunStoresEveryBatch(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T4", "doc.pdf", pdftest.MustBuild(
		pdftest.Text("Scope of works for the pump station"),
		pdftest.Text("Alcance de los trabajos electricos"),
		pdftest.Text("Payment terms and retention"),
	))
	chunks := &fakeChunks{saved: []models.EmbeddedChunk{
		{Chunk: models.Chunk{TenderID: "T4", DocumentName: "doc.pdf", Text: "stale"}},
	}}
	embedder := &fakeEmbedder{}
	ledger := newLedger(t, progress.LedgerDocuments)
	handler := NewEmbeddingHandler(newDispatcher(t), &fakeImage{}, &fakeText{}, embedder, chunks, DefaultErrorBudget,
		WithBatchPlanner(BatchPlanner{ThresholdBytesPerPage: 1 << 30, LargeBatch: 2, SmallBatch: 1}))

	report, err := NewRunner(docs, ledger, handler).Run(ctx, "T4")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedDocs)
	assert.Equal(t, map[string]int{"doc.pdf": 3}, report.EmbeddedChunks)
	assert.Equal(t, int32(2), embedder.calls.Load())
	assert.Equal(t, []string{"doc.pdf"}, chunks.deleted)

	require.Len(t, chunks.saved, 3)
	for i, c := range chunks.saved {
		assert.Equal(t, i+1, c.Page)
		assert.Equal(t, models.ChunkTypeText, c.Type)
		assert.Contains(t, c.Text, "OTHER translated:")
		assert.Len(t, c.Embedding, 1)
	}

	done, err := ledger.IsComplete(ctx, "T4", "doc.pdf")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestEmbeddingDocumentWithoutTextReportsZeroChunks(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T9", "separators.pdf", pdftest.MustBuild(pdftest.Blank(), pdftest.Blank()))
	image := &fakeImage{answer: ""}
	embedder := &fakeEmbedder{}
	ledger := newLedger(t, progress.LedgerDocuments)
	handler := NewEmbeddingHandler(newDispatcher(t), image, &fakeText{}, embedder, &fakeChunks{}, DefaultErrorBudget)

	report, err := NewRunner(docs, ledger, handler).Run(ctx, "T9")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedDocs)
	assert.Zero(t, report.TotalPageErrors)
	assert.Equal(t, map[string]int{"separators.pdf": 0}, report.EmbeddedChunks)
	assert.Equal(t, int32(2), image.calls.Load())
	assert.Zero(t, embedder.calls.Load())

	done, err := ledger.IsComplete(ctx, "T9", "separators.pdf")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestEmbeddingStopsLaunchingBatchesOverBudget(t *testing.T) {
	var pages []pdftest.Page
	for i := 1; i <= 8; i++ {
		pages = append(pages, pdftest.Text(fmt.Sprintf("Corrupted annex %d", i)))
	}
	doc, err := pdfdoc.Open("bad.pdf", pdftest.MustBuild(pages...))
	require.NoError(t, err)

	text := &fakeText{failMarker: "Corrupted annex"}
	embedder := &fakeEmbedder{}
	handler := NewEmbeddingHandler(newDispatcher(t), &fakeImage{}, text, embedder, &fakeChunks{}, DefaultErrorBudget,
		WithBatchPlanner(BatchPlanner{ThresholdBytesPerPage: 1 << 30, LargeBatch: 2, SmallBatch: 2}))

	outcome, err := handler.Handle(context.Background(), "T5", doc)
	require.NoError(t, err)
	assert.True(t, outcome.Aborted)
	assert.Equal(t, 4, outcome.PageErrors)
	assert.Equal(t, int32(4), text.calls.Load())
	assert.Zero(t, embedder.calls.Load())
}

func TestEmbeddingStoreFailureIsADocumentError(t *testing.T) {
	ctx := context.Background()
	docs := newMemStore()
	docs.add("T6", "doc.pdf", pdftest.MustBuild(pdftest.Text("Scope of works for the pump station")))
	ledger := newLedger(t, progress.LedgerDocuments)
	handler := NewEmbeddingHandler(newDispatcher(t), &fakeImage{}, &fakeText{},
		&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeChunks{}, DefaultErrorBudget)

	report, err := NewRunner(docs, ledger, handler).Run(ctx, "T6")
	require.NoError(t, err)
	assert.Zero(t, report.ProcessedDocs)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "doc.pdf: failed to store pages 1-1")
	assert.Contains(t, report.Errors[0], "quota exceeded")

	done, err := ledger.IsComplete(ctx, "T6", "doc.pdf")
	require.NoError(t, err)
	assert.False(t, done)
}
