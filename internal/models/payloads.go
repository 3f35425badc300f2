package models

// These structs define the JSON payloads for HTTP requests and responses
// between Cloud Workflows, the web client and the tender functions.

// TenderRequest is the input for the form-extractor, tender-embedder and document-archiver functions.
type TenderRequest struct {
	TenderID    string `json:"tenderId"`
	ExecutionID string `json:"executionId,omitempty"`
}

// FormExportRequest is the input for the form-exporter function.
// When Forms is empty the page lists are read from the classification ledger.
type FormExportRequest struct {
	TenderID string           `json:"tenderId"`
	Forms    map[string][]int `json:"forms,omitempty"`
	// Upload stores the combined PDF under exports/ in the documents bucket as well.
	Upload bool `json:"upload,omitempty"`
}

// DispatchRequest is the input for the tender-dispatcher function.
type DispatchRequest struct {
	MinTenderValue *float64 `json:"minTenderValue,omitempty"`
	// DryRun reports what would be started without starting anything.
	DryRun bool `json:"dryRun,omitempty"`
}

// DispatchResponse lists the tenders the dispatcher started, skipped or failed to start.
type DispatchResponse struct {
	Status     string            `json:"status"`
	Started    map[string]string `json:"started"`
	Skipped    []string          `json:"skipped"`
	Failed     map[string]string `json:"failed,omitempty"`
	Considered int               `json:"considered"`
}

// ErrorResponse is the body of a whole-invocation failure.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
