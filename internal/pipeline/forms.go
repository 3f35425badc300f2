package pipeline

import (
	"context"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/pageops"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
)

// FormHandler classifies every page of a document and reports the pages that are fillable forms.
type FormHandler struct {
	dispatcher *dispatch.Dispatcher
	image      inference.ImageBackend
	text       inference.TextBackend
	budget     ErrorBudget
}

func NewFormHandler(d *dispatch.Dispatcher, image inference.ImageBackend, text inference.TextBackend, budget ErrorBudget) *FormHandler {
	return &FormHandler{dispatcher: d, image: image, text: text, budget: budget}
}

// Reset does nothing: the page list is only written together with the completion mark.
func (h *FormHandler) Reset(ctx context.Context, tenderID, name string) error {
	return nil
}

func (h *FormHandler) Handle(ctx context.Context, tenderID string, doc *pdfdoc.Document) (models.DocumentOutcome, error) {
	op := pageops.NewFormClassifier(h.image, h.text, doc)
	result := ProcessPages[pageops.Label](ctx, h.dispatcher, op, doc.Pages)

	outcome := models.DocumentOutcome{
		ScannedPages: result.ScannedPages,
		RegularPages: result.RegularPages,
		PageErrors:   result.PageErrors,
	}
	if h.budget.Exceeded(result.PageErrors) {
		outcome.Aborted = true
		return outcome, nil
	}

	outcome.FormPages = []int{}
	for _, p := range result.Succeeded() {
		if p.Value == pageops.LabelForm {
			outcome.FormPages = append(outcome.FormPages, p.Page.Number)
		}
	}
	return outcome, nil
}
