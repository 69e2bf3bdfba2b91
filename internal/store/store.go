// Package store persists the run log: one row per price run with its
// outcome counts, so past runs can be listed and compared.
package store

import (
	"context"
	"time"

	"github.com/sells-group/price-scout/internal/model"
)

// Run is one recorded price run.
type Run struct {
	ID         string                   `json:"id"`
	Sources    []string                 `json:"sources"`
	Status     model.RunStatus          `json:"status"`
	Processed  int                      `json:"processed"`
	Summary    map[string]model.Summary `json:"summary,omitempty"`
	OutputFile string                   `json:"output_file,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the run log persistence interface.
type Store interface {
	RecordRun(ctx context.Context, run Run) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
