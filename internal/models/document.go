package models

import (
	"slices"
	"time"
)

// ProgressRecord is the persisted completion ledger for one tender.
// Completed has set semantics: a document name appears at most once.
type ProgressRecord struct {
	TenderID  string           `firestore:"tenderId" bson:"tender_id" json:"tenderId"`
	Completed []string         `firestore:"completed,omitempty" bson:"completed,omitempty" json:"completed"`
	Forms     map[string][]int `firestore:"forms,omitempty" bson:"forms,omitempty" json:"forms,omitempty"`
	UpdatedAt time.Time        `firestore:"updatedAt,omitempty" bson:"updated_at,omitempty" json:"updatedAt"`
}

// IsComplete reports whether name is in the completed set.
func (r *ProgressRecord) IsComplete(name string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.Completed, name)
}

// MarkComplete adds name to the completed set and, when pages is non-nil, stores its page list.
func (r *ProgressRecord) MarkComplete(name string, pages []int, at time.Time) {
	if !slices.Contains(r.Completed, name) {
		r.Completed = append(r.Completed, name)
	}
	if pages != nil {
		if r.Forms == nil {
			r.Forms = make(map[string][]int)
		}
		r.Forms[name] = slices.Clone(pages)
	}
	r.UpdatedAt = at
}
