package domain

import "time"

// RunKind distinguishes the unit of work a summary describes.
type RunKind string

const (
	RunKindSync    RunKind = "sync"
	RunKindRefresh RunKind = "refresh"
)

// SyncSummary reports the outcome of one source sync run.
// Partial failures are reported here, never returned as errors.
type SyncSummary struct {
	Source     Source    `json:"source"`
	Fetched    int       `json:"fetched"`
	Upserted   int       `json:"upserted"`
	Skipped    int       `json:"skipped"`  // listings not merged (rejected + store failures)
	Rejected   int       `json:"rejected"` // listings rejected by the normalizer
	Pages      int       `json:"pages"`
	PageErrors int       `json:"page_errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RefreshSummary reports the outcome of one price refresh run.
type RefreshSummary struct {
	Total      int       `json:"total"`
	Updated    int       `json:"updated"`
	Unresolved int       `json:"unresolved"`
	Errors     int       `json:"errors"` // addresses in failed batches plus failed writes, 1 when listing fails
	Batches    int       `json:"batches"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SyncRun is a persisted summary of any run.
// Corresponds to sync_runs table in PostgreSQL.
type SyncRun struct {
	ID         int64
	Kind       RunKind
	Source     Source // empty for refresh runs
	Fetched    int    // total for refresh runs
	Written    int    // upserted / updated
	Skipped    int    // skipped / errors
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run converts a sync summary into a persisted run.
func (s *SyncSummary) Run() *SyncRun {
	return &SyncRun{
		Kind:       RunKindSync,
		Source:     s.Source,
		Fetched:    s.Fetched,
		Written:    s.Upserted,
		Skipped:    s.Skipped,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// Run converts a refresh summary into a persisted run.
func (s *RefreshSummary) Run() *SyncRun {
	return &SyncRun{
		Kind:       RunKindRefresh,
		Fetched:    s.Total,
		Written:    s.Updated,
		Skipped:    s.Errors,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}
