package vectorstore

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/tenderflow/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Mongo stores one document per chunk with the embedding as a BSON vector.
type Mongo struct {
	collection *mongo.Collection
}

func NewMongo(collection *mongo.Collection) *Mongo {
	return &Mongo{collection: collection}
}

type chunkDocument struct {
	models.Chunk `bson:",inline"`
	Embedding    bson.Vector `bson:"embedding"`
}

func (m *Mongo) Save(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chunkDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = chunkDocument{Chunk: c.Chunk, Embedding: bson.NewVector(c.Embedding)}
	}
	if _, err := m.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert %d chunks: %w", len(chunks), err)
	}
	return nil
}

func (m *Mongo) DeleteResults(ctx context.Context, tenderID, document string) error {
	if _, err := m.collection.DeleteMany(ctx, documentFilter(tenderID, document)); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", document, err)
	}
	return nil
}

func (m *Mongo) Count(ctx context.Context, tenderID, document string) (int, error) {
	n, err := m.collection.CountDocuments(ctx, documentFilter(tenderID, document))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks of %s: %w", document, err)
	}
	return int(n), nil
}

func documentFilter(tenderID, document string) bson.D {
	return bson.D{{Key: "tender_id", Value: tenderID}, {Key: "document_name", Value: document}}
}
