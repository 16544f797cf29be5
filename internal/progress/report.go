// Package progress derives human-readable throughput statistics from a
// checkpoint. It is a pure read path: building or printing a report never
// mutates pipeline state and never touches the network.
package progress

import (
	"time"

	"github.com/savori/ingredient-sync/internal/checkpoint"
)

// Report is a point-in-time summary of an ingestion run.
type Report struct {
	RunID            string
	Partition        string
	Page             int
	Processed        int
	TotalEstimated   int
	PercentComplete  float64
	Inserted         int
	Skipped          int
	ErrorCount       int
	RecentErrors     []string
	Elapsed          time.Duration
	ItemsPerMinute   float64
	EstimatedDoneAt  *time.Time
	LastCheckpointAt time.Time
}

// maxRecentErrors bounds how many error messages a report carries.
const maxRecentErrors = 5

// Build derives a Report from a checkpoint. Rates and percentages are only
// computed when they are finite; zero-progress runs report zeros rather than
// garbage.
func Build(cp *checkpoint.Checkpoint, now time.Time) Report {
	r := Report{
		RunID:            cp.RunID.String(),
		Partition:        string(cp.CurrentPartition),
		Page:             cp.CurrentPage,
		Processed:        cp.Processed,
		TotalEstimated:   cp.TotalEstimated,
		Inserted:         cp.Inserted,
		Skipped:          cp.Skipped,
		ErrorCount:       len(cp.Errors),
		Elapsed:          now.Sub(cp.StartedAt),
		EstimatedDoneAt:  cp.EstimatedDoneAt,
		LastCheckpointAt: cp.UpdatedAt,
	}

	if n := len(cp.Errors); n > 0 {
		start := n - maxRecentErrors
		if start < 0 {
			start = 0
		}
		r.RecentErrors = cp.Errors[start:]
	}

	if cp.TotalEstimated > 0 {
		r.PercentComplete = float64(cp.Processed) / float64(cp.TotalEstimated) * 100
		if r.PercentComplete > 100 {
			r.PercentComplete = 100
		}
	}
	if minutes := r.Elapsed.Minutes(); minutes > 0 && cp.Processed > 0 {
		r.ItemsPerMinute = float64(cp.Processed) / minutes
	}
	return r
}
