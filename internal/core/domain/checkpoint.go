package domain

import "time"

// Checkpoints is the durable resume state document, keyed by schema name.
type Checkpoints map[string]Checkpoint

// Checkpoint records where a harvest for one schema can resume. It is
// written after every committed page, so a crash loses at most one page
// of progress.
type Checkpoint struct {
	// UpdatedAt is when this entry was last written.
	UpdatedAt time.Time `json:"updatedAt"`

	// RunID identifies the harvest run that last touched this entry.
	RunID string `json:"runId,omitempty"`

	// ResumptionToken is the last-seen continuation token. Nil means the
	// harvest is exhausted or was never started.
	ResumptionToken *string `json:"resumptionToken"`

	// RecordsWritten is the number of records upserted by the run.
	RecordsWritten int `json:"recordsWritten"`

	// PagesFetched is the number of pages committed by the run.
	PagesFetched int `json:"pagesFetched"`

	// From, Until and Set record the harvest selection used.
	From  string `json:"from,omitempty"`
	Until string `json:"until,omitempty"`
	Set   string `json:"set,omitempty"`

	// Error is set when the run terminated on a protocol error.
	Error *CheckpointError `json:"error,omitempty"`
}

// CheckpointError preserves the remote error that terminated a run.
type CheckpointError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestURL string `json:"lastRequestUrl"`
}
