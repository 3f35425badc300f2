package pageops

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImage struct {
	answer       string
	err          error
	instructions []string
}

func (f *fakeImage) InferImage(ctx context.Context, jpeg []byte, instruction string) (string, error) {
	f.instructions = append(f.instructions, instruction)
	return f.answer, f.err
}

type fakeText struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeText) InferText(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type fakeRenderer struct {
	err      error
	rendered []int
}

func (f *fakeRenderer) RenderPage(pageNr int) ([]byte, error) {
	f.rendered = append(f.rendered, pageNr)
	return []byte{0xff, 0xd8}, f.err
}

func TestParseLabel(t *testing.T) {
	assert.Equal(t, LabelForm, ParseLabel("FORM"))
	assert.Equal(t, LabelForm, ParseLabel("form."))
	assert.Equal(t, LabelForm, ParseLabel("Answer: FORM"))
	assert.Equal(t, LabelOther, ParseLabel("OTHER"))
	assert.Equal(t, LabelOther, ParseLabel(""))
	assert.Equal(t, "FORM", LabelForm.String())
}

func TestFormClassifierRoutesByModality(t *testing.T) {
	image := &fakeImage{answer: "FORM"}
	text := &fakeText{answer: "OTHER"}
	renderer := &fakeRenderer{}
	c := NewFormClassifier(image, text, renderer)

	scanned := pdfdoc.Page{Number: 2, Scanned: true}
	regular := pdfdoc.Page{Number: 1, Text: "General conditions of contract"}

	assert.Equal(t, dispatch.LaneImage, c.Lane(scanned))
	assert.Equal(t, dispatch.LaneText, c.Lane(regular))

	label, err := c.Apply(context.Background(), scanned)
	require.NoError(t, err)
	assert.Equal(t, LabelForm, label)
	assert.Equal(t, []int{2}, renderer.rendered)
	require.Len(t, image.instructions, 1)
	assert.Contains(t, image.instructions[0], inference.ImageContentPlaceholder)

	label, err = c.Apply(context.Background(), regular)
	require.NoError(t, err)
	assert.Equal(t, LabelOther, label)
	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], "General conditions of contract")
}

func TestFormClassifierSurfacesErrors(t *testing.T) {
	boom := errors.New("401 unauthorized")
	c := NewFormClassifier(&fakeImage{}, &fakeText{err: boom}, &fakeRenderer{})
	_, err := c.Apply(context.Background(), pdfdoc.Page{Number: 4, Text: "Bill of quantities"})
	assert.ErrorIs(t, err, boom)

	broken := errors.New("failed to read PDF for rendering")
	c = NewFormClassifier(&fakeImage{}, &fakeText{}, &fakeRenderer{err: broken})
	_, err = c.Apply(context.Background(), pdfdoc.Page{Number: 5, Scanned: true})
	assert.ErrorIs(t, err, broken)
}

func TestTranscriber(t *testing.T) {
	image := &fakeImage{answer: "```\nBID FORM\nName of bidder: ____\n```"}
	text := &fakeText{answer: "Scope of work"}
	tr := NewTranscriber(image, text, &fakeRenderer{})

	got, err := tr.Apply(context.Background(), pdfdoc.Page{Number: 1, Scanned: true})
	require.NoError(t, err)
	assert.Equal(t, "BID FORM\nName of bidder: ____", got)
	assert.Equal(t, []string{inference.OCRPrompt}, image.instructions)

	got, err = tr.Apply(context.Background(), pdfdoc.Page{Number: 2, Text: "Alcance del trabajo"})
	require.NoError(t, err)
	assert.Equal(t, "Scope of work", got)
	assert.True(t, strings.HasSuffix(text.prompts[0], "Alcance del trabajo"))
}

func TestChunkerSplitsParagraphsAndLongText(t *testing.T) {
	long := strings.Repeat("word ", 30) // 150 runes
	text := "Section 1\nIntroduction\n\n   \n\n" + long + "\n\nLast"

	chunks := Chunker{MaxRunes: 60}.Split("T1", "doc.pdf", 3, true, text)

	require.GreaterOrEqual(t, len(chunks), 5)
	assert.Equal(t, "Section 1\nIntroduction", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, 0, chunks[0].SubPosition)

	last := chunks[len(chunks)-1]
	assert.Equal(t, "Last", last.Text)
	assert.Equal(t, 2, last.Position)

	for i, c := range chunks {
		assert.Equal(t, "T1", c.TenderID)
		assert.Equal(t, "doc.pdf", c.DocumentName)
		assert.Equal(t, 3, c.Page)
		assert.True(t, c.IsScanned)
		assert.Equal(t, models.ChunkTypeScanned, c.Type)
		assert.LessOrEqual(t, len([]rune(c.Text)), 60)
		if c.Position == 1 {
			assert.Equal(t, i-1, c.SubPosition)
		}
	}
}

func TestChunkerEmptyText(t *testing.T) {
	assert.Empty(t, Chunker{}.Split("T1", "doc.pdf", 1, false, "  \n\n "))
}
