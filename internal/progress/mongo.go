package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lllllllleong/tenderflow/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo shares one status document per tender between ledgers. Each ledger owns its completed_* array;
// page lists live in form_pages as {document, pages} entries so document names may contain dots.
type Mongo struct {
	collection *mongo.Collection
	ledger     Ledger
}

func NewMongo(collection *mongo.Collection, ledger Ledger) *Mongo {
	return &Mongo{collection: collection, ledger: ledger}
}

// EnsureIndexes creates the unique tender_id index concurrent upserts rely on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tender_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create tender_id index: %w", err)
	}
	return nil
}

type formEntry struct {
	Document string `bson:"document"`
	Pages    []int  `bson:"pages"`
}

type statusDocument struct {
	TenderID  string      `bson:"tender_id"`
	Forms     []string    `bson:"completed_forms"`
	Documents []string    `bson:"completed_documents"`
	FormPages []formEntry `bson:"form_pages"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

func (m *Mongo) IsComplete(ctx context.Context, tenderID, name string) (bool, error) {
	err := m.collection.FindOne(ctx,
		bson.D{{Key: "tender_id", Value: tenderID}, {Key: m.ledger.Field(), Value: name}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read progress for tender %s: %w", tenderID, err)
	}
	return true, nil
}

// MarkComplete is a single pipeline update so the set insert and the page-list replacement land together.
func (m *Mongo) MarkComplete(ctx context.Context, tenderID, name string, pages []int) error {
	field := m.ledger.Field()
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}
	literal := bson.D{{Key: "$literal", Value: name}}

	set := bson.D{
		{Key: field, Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{literal, current}}},
			current,
			bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{literal}}}},
		}}}},
		{Key: "updated_at", Value: time.Now().UTC()},
	}
	if pages != nil {
		set = append(set, bson.E{Key: "form_pages", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$form_pages", bson.A{}}}}},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this.document", literal}}}},
			}}},
			bson.A{bson.D{{Key: "document", Value: literal}, {Key: "pages", Value: bson.D{{Key: "$literal", Value: pages}}}}},
		}}}})
	}

	_, err := m.collection.UpdateOne(ctx,
		bson.D{{Key: "tender_id", Value: tenderID}},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s complete for tender %s: %w", name, tenderID, err)
	}
	return nil
}

func (m *Mongo) Record(ctx context.Context, tenderID string) (*models.ProgressRecord, error) {
	var doc statusDocument
	err := m.collection.FindOne(ctx, bson.D{{Key: "tender_id", Value: tenderID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.ProgressRecord{TenderID: tenderID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for tender %s: %w", tenderID, err)
	}

	rec := &models.ProgressRecord{TenderID: tenderID, UpdatedAt: doc.UpdatedAt}
	switch m.ledger {
	case LedgerForms:
		rec.Completed = doc.Forms
		if len(doc.FormPages) > 0 {
			rec.Forms = make(map[string][]int, len(doc.FormPages))
			for _, e := range doc.FormPages {
				rec.Forms[e.Document] = e.Pages
			}
		}
	default:
		rec.Completed = doc.Documents
	}
	return rec, nil
}
