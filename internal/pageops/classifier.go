// Package pageops holds the per-page operations the document pipeline fans out:
// form classification and text transcription for embedding.
package pageops

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
)

// Renderer produces the JPEG sent to the image backend for a scanned page.
type Renderer interface {
	RenderPage(pageNr int) ([]byte, error)
}

type Label int

const (
	LabelOther Label = iota
	LabelForm
)

func (l Label) String() string {
	if l == LabelForm {
		return "FORM"
	}
	return "OTHER"
}

// ParseLabel maps a backend answer to a label. Anything not mentioning FORM is negative.
func ParseLabel(answer string) Label {
	if strings.Contains(strings.ToUpper(answer), "FORM") {
		return LabelForm
	}
	return LabelOther
}

// LaneFor routes scanned pages to the image backend and the rest to the text backend.
func LaneFor(page pdfdoc.Page) dispatch.Lane {
	if page.Scanned {
		return dispatch.LaneImage
	}
	return dispatch.LaneText
}

// FormClassifier labels the pages of one document as fillable forms or not.
type FormClassifier struct {
	image    inference.ImageBackend
	text     inference.TextBackend
	renderer Renderer
}

func NewFormClassifier(image inference.ImageBackend, text inference.TextBackend, renderer Renderer) *FormClassifier {
	return &FormClassifier{image: image, text: text, renderer: renderer}
}

func (c *FormClassifier) Lane(page pdfdoc.Page) dispatch.Lane { return LaneFor(page) }

func (c *FormClassifier) Apply(ctx context.Context, page pdfdoc.Page) (Label, error) {
	var (
		answer string
		err    error
	)
	if page.Scanned {
		img, renderErr := c.renderer.RenderPage(page.Number)
		if renderErr != nil {
			return LabelOther, fmt.Errorf("failed to render page %d: %w", page.Number, renderErr)
		}
		answer, err = c.image.InferImage(ctx, img, inference.BuildClassifyPrompt(inference.ImageContentPlaceholder))
	} else {
		answer, err = c.text.InferText(ctx, inference.BuildClassifyPrompt(page.Text))
	}
	if err != nil {
		return LabelOther, fmt.Errorf("failed to classify page %d: %w", page.Number, err)
	}
	return ParseLabel(answer), nil
}
