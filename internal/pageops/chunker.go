package pageops

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Lllllllleong/tenderflow/internal/models"
)

// DefaultMaxChunkRunes bounds a single chunk's text.
const DefaultMaxChunkRunes = 1200

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunker splits page text into paragraphs, and long paragraphs into sub-chunks.
type Chunker struct {
	MaxRunes int
}

// Split returns the chunks of one page. Position numbers paragraphs from 0;
// SubPosition numbers the pieces of a paragraph that exceeded MaxRunes.
func (c Chunker) Split(tenderID, document string, page int, scanned bool, text string) []models.Chunk {
	limit := c.MaxRunes
	if limit <= 0 {
		limit = DefaultMaxChunkRunes
	}
	kind := models.ChunkTypeText
	if scanned {
		kind = models.ChunkTypeScanned
	}

	var chunks []models.Chunk
	position := 0
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for sub, piece := range splitRunes(para, limit) {
			chunks = append(chunks, models.Chunk{
				TenderID:     tenderID,
				DocumentName: document,
				Page:         page,
				Position:     position,
				SubPosition:  sub,
				Type:         kind,
				IsScanned:    scanned,
				Text:         piece,
			})
		}
		position++
	}
	return chunks
}

// splitRunes cuts s into pieces of at most limit runes, preferring whitespace boundaries.
func splitRunes(s string, limit int) []string {
	runes := []rune(s)
	var pieces []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	if piece := strings.TrimSpace(string(runes)); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}
