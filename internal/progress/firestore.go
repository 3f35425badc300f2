package progress

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore keeps one document per tender in the ledger's collection, keyed by tender id.
type Firestore struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(client *firestore.Client, collection string) *Firestore {
	return &Firestore{client: client, collection: collection}
}

func (f *Firestore) IsComplete(ctx context.Context, tenderID, name string) (bool, error) {
	rec, err := f.Record(ctx, tenderID)
	if err != nil {
		return false, err
	}
	return rec.IsComplete(name), nil
}

// MarkComplete merges into the tender document; ArrayUnion keeps the completed list free of duplicates.
func (f *Firestore) MarkComplete(ctx context.Context, tenderID, name string, pages []int) error {
	data := map[string]interface{}{
		"tenderId":  tenderID,
		"completed": firestore.ArrayUnion(name),
		"updatedAt": firestore.ServerTimestamp,
	}
	if pages != nil {
		data["forms"] = map[string]interface{}{name: pages}
	}
	if _, err := f.client.Collection(f.collection).Doc(tenderID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to mark %s complete for tender %s: %w", name, tenderID, err)
	}
	return nil
}

func (f *Firestore) Record(ctx context.Context, tenderID string) (*models.ProgressRecord, error) {
	snap, err := f.client.Collection(f.collection).Doc(tenderID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return &models.ProgressRecord{TenderID: tenderID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for tender %s: %w", tenderID, err)
	}
	rec := &models.ProgressRecord{}
	if err := snap.DataTo(rec); err != nil {
		return nil, fmt.Errorf("failed to decode progress for tender %s: %w", tenderID, err)
	}
	rec.TenderID = tenderID
	return rec, nil
}
