// Package progress records which documents of a tender are finished so a rerun only processes what is left.
package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lllllllleong/tenderflow/internal/models"
)

// Ledger separates completion state of the operations that share a tender.
type Ledger string

const (
	LedgerForms     Ledger = "forms"
	LedgerDocuments Ledger = "documents"
)

var ErrUnknownLedger = errors.New("unknown progress ledger")

func ParseLedger(s string) (Ledger, error) {
	switch Ledger(s) {
	case LedgerForms, LedgerDocuments:
		return Ledger(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLedger, s)
}

// Field is the per-tender array holding completed document names when ledgers share one record.
func (l Ledger) Field() string {
	return "completed_" + string(l)
}

// Store is one ledger. Marking is idempotent: a name appears at most once in the completed set.
type Store interface {
	IsComplete(ctx context.Context, tenderID, name string) (bool, error)
	// MarkComplete adds name to the completed set. A non-nil pages replaces the document's stored page list.
	MarkComplete(ctx context.Context, tenderID, name string, pages []int) error
	// Record returns the tender's ledger, empty when nothing was recorded yet.
	Record(ctx context.Context, tenderID string) (*models.ProgressRecord, error)
}

// AllComplete reports whether every name is in the tender's ledger.
func AllComplete(ctx context.Context, s Store, tenderID string, names []string) (bool, error) {
	rec, err := s.Record(ctx, tenderID)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if !rec.IsComplete(n) {
			return false, nil
		}
	}
	return true, nil
}
