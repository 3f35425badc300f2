// Package vectorstore persists embedded page chunks and removes a document's chunks before it is reprocessed.
package vectorstore

import (
	"context"

	"github.com/Lllllllleong/tenderflow/internal/models"
)

type Store interface {
	Save(ctx context.Context, chunks []models.EmbeddedChunk) error
	// DeleteResults removes every chunk stored for the document; deleting nothing is not an error.
	DeleteResults(ctx context.Context, tenderID, document string) error
	Count(ctx context.Context, tenderID, document string) (int, error)
}
