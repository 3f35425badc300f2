package models

import (
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a lexically sortable identifier for one pipeline invocation.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// ProcessingReport accumulates the outcome of one tender run.
// It is owned by a single goroutine and returned to the caller; it is never persisted.
type ProcessingReport struct {
	RunID           string           `json:"runId"`
	TenderID        string           `json:"tenderId"`
	ProcessedDocs   int              `json:"processedDocs"`
	SkippedDocs     int              `json:"skippedDocs"`
	EmptyDocs       int              `json:"emptyDocs"`
	AbortedDocs     int              `json:"abortedDocs"`
	ScannedPages    int              `json:"scannedPages"`
	RegularPages    int              `json:"regularPages"`
	TotalPageErrors int              `json:"totalPageErrors"`
	Errors          []string         `json:"errors"`
	FormPages       map[string][]int `json:"formPages,omitempty"`
	EmbeddedChunks  map[string]int   `json:"embeddedChunks,omitempty"`
	StartedAt       time.Time        `json:"startedAt"`
	FinishedAt      time.Time        `json:"finishedAt"`
}

// DocumentOutcome is what a document handler reports back to the tender loop.
type DocumentOutcome struct {
	ScannedPages int
	RegularPages int
	PageErrors   int
	Aborted      bool
	// FormPages is set by the classification handler, nil otherwise.
	FormPages []int
	// Embedded is set by the embedding handler; Chunks is then the number of chunks it stored.
	Embedded bool
	Chunks   int
}

func NewProcessingReport(tenderID string) *ProcessingReport {
	return &ProcessingReport{
		RunID:     NewRunID(),
		TenderID:  tenderID,
		Errors:    []string{},
		StartedAt: time.Now().UTC(),
	}
}

func (r *ProcessingReport) Skip() { r.SkippedDocs++ }

// Empty records a document with no pages. It is left incomplete.
func (r *ProcessingReport) Empty() { r.EmptyDocs++ }

// Fail records a document-level error; the document stays incomplete.
func (r *ProcessingReport) Fail(name string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", name, err))
}

// Abort records a document whose page errors exceeded the budget.
// Page counters still include the work that was attempted.
func (r *ProcessingReport) Abort(name string, o DocumentOutcome) {
	r.addPages(o)
	r.AbortedDocs++
	r.Errors = append(r.Errors, fmt.Sprintf("%s aborted due to %d page errors", name, o.PageErrors))
}

// Complete records a document accepted under the error budget.
func (r *ProcessingReport) Complete(name string, o DocumentOutcome) {
	r.addPages(o)
	r.ProcessedDocs++
	if o.PageErrors > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("%s had %d page errors", name, o.PageErrors))
	}
	if o.FormPages != nil {
		if r.FormPages == nil {
			r.FormPages = make(map[string][]int)
		}
		r.FormPages[name] = slices.Clone(o.FormPages)
	}
	if o.Embedded {
		if r.EmbeddedChunks == nil {
			r.EmbeddedChunks = make(map[string]int)
		}
		r.EmbeddedChunks[name] = o.Chunks
	}
}

func (r *ProcessingReport) addPages(o DocumentOutcome) {
	r.ScannedPages += o.ScannedPages
	r.RegularPages += o.RegularPages
	r.TotalPageErrors += o.PageErrors
}

func (r *ProcessingReport) Finish() {
	r.FinishedAt = time.Now().UTC()
}
