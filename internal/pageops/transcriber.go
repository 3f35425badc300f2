package pageops

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
)

// Transcriber produces English page text for embedding: OCR for scans, translation otherwise.
type Transcriber struct {
	image    inference.ImageBackend
	text     inference.TextBackend
	renderer Renderer
}

func NewTranscriber(image inference.ImageBackend, text inference.TextBackend, renderer Renderer) *Transcriber {
	return &Transcriber{image: image, text: text, renderer: renderer}
}

func (t *Transcriber) Lane(page pdfdoc.Page) dispatch.Lane { return LaneFor(page) }

func (t *Transcriber) Apply(ctx context.Context, page pdfdoc.Page) (string, error) {
	if page.Scanned {
		img, err := t.renderer.RenderPage(page.Number)
		if err != nil {
			return "", fmt.Errorf("failed to render page %d: %w", page.Number, err)
		}
		text, err := t.image.InferImage(ctx, img, inference.OCRPrompt)
		if err != nil {
			return "", fmt.Errorf("failed to transcribe page %d: %w", page.Number, err)
		}
		return inference.CleanOutput(text), nil
	}
	text, err := t.text.InferText(ctx, inference.BuildTranslatePrompt(page.Text))
	if err != nil {
		return "", fmt.Errorf("failed to translate page %d: %w", page.Number, err)
	}
	return text, nil
}
