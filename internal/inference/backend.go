// Package inference holds the remote model backends used to read tender pages.
package inference

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ImageBackend answers an instruction about a page raster.
type ImageBackend interface {
	InferImage(ctx context.Context, jpeg []byte, instruction string) (string, error)
}

// TextBackend answers a text prompt.
type TextBackend interface {
	InferText(ctx context.Context, prompt string) (string, error)
}

var ErrEmptyResponse = errors.New("backend returned an empty response")

// --- Prompts ---

// TenderConsultantSystemPrompt frames every text backend call.
const TenderConsultantSystemPrompt = "You are a tender consultant."

// ClassifyPrompt is shared by both backends; ImageContentPlaceholder replaces the page text for scans.
const ClassifyPrompt = `You are a strict classifier for tender documents.

Your task is to identify ONLY the pages that must be filled out by the contractor and sent back to the client.
These pages contain blanks, empty fields, places to write, tables to fill, or areas for signatures/seals.

Ignore any page that is purely:
- Instructions, clauses, or general text
- Tender descriptions
- Annexures with information already filled
- Tables that only display data without requiring input

Respond with ONE WORD ONLY: FORM or OTHER.

Page content:
{content}`

const ImageContentPlaceholder = "Image attached"

const OCRPrompt = `Extract all text from this scanned page exactly as it appears on the page.
- Do NOT summarize, interpret, or add any commentary.
- Output only the text exactly as on the page, no less no more.
- If no text is found, return an empty string "".`

const TranslatePrompt = `You are a translator. Translate the following text to English exactly.
- If the text is already in English, leave it unchanged.
- Do not summarize, comment, or alter the content in any way.
- Preserve all formatting, spacing, and newlines.
- If the text is blank, return blank.`

// BuildClassifyPrompt substitutes content into ClassifyPrompt.
func BuildClassifyPrompt(content string) string {
	return strings.Replace(ClassifyPrompt, "{content}", content, 1)
}

// BuildTranslatePrompt appends the page text to TranslatePrompt.
func BuildTranslatePrompt(text string) string {
	return TranslatePrompt + "\n\n" + text
}

var (
	fencePattern        = regexp.MustCompile("```(?:markdown)?\\s*")
	closingFencePattern = regexp.MustCompile("\\s*```")
	displayMathPattern  = regexp.MustCompile(`(?s)\$\$(.*?)\$\$`)
	inlineMathPattern   = regexp.MustCompile(`(?s)\$(.*?)\$`)
)

// CleanOutput strips code fences and LaTeX blocks that models like to wrap answers in.
func CleanOutput(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	text = closingFencePattern.ReplaceAllString(text, "")
	text = displayMathPattern.ReplaceAllString(text, "")
	text = inlineMathPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
