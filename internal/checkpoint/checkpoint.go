// Package checkpoint holds the durable record of ingestion progress. The
// checkpoint is what makes multi-week runs survivable: it is persisted after
// every batch flush and read back on resume to reconstruct the exact
// partition/page position.
package checkpoint

import (
	"time"

	"github.com/google/uuid"

	"github.com/savori/ingredient-sync/internal/types"
)

// maxErrorLog bounds the append-only error list so a degraded run cannot
// grow the checkpoint without limit.
const maxErrorLog = 100

// Checkpoint is the singleton mutable state of one pipeline run. The Buffer
// field is in-memory only: it holds transformed records between flush points
// and is never persisted.
type Checkpoint struct {
	RunID            uuid.UUID       `json:"run_id"`
	TotalEstimated   int             `json:"total_estimated"`
	Processed        int             `json:"processed"`
	CurrentPartition types.Partition `json:"current_partition"`
	PartitionIndex   int             `json:"partition_index"`
	CurrentPage      int             `json:"current_page"`
	Inserted         int             `json:"inserted"`
	Skipped          int             `json:"skipped"`
	Errors           []string        `json:"errors"`
	StartedAt        time.Time       `json:"started_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	EstimatedDoneAt  *time.Time      `json:"estimated_done_at,omitempty"`

	Buffer []types.NormalizedIngredient `json:"-"`
}

// New initializes a fresh checkpoint positioned at the first page of the
// first partition.
func New(partitions []types.Partition) *Checkpoint {
	now := time.Now().UTC()
	cp := &Checkpoint{
		RunID:       uuid.New(),
		CurrentPage: 1,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if len(partitions) > 0 {
		cp.CurrentPartition = partitions[0]
	}
	return cp
}

// LogError appends a message to the bounded error log, evicting the oldest
// entry once full.
func (c *Checkpoint) LogError(msg string) {
	if len(c.Errors) >= maxErrorLog {
		c.Errors = c.Errors[1:]
	}
	c.Errors = append(c.Errors, msg)
}

// AdvancePage moves to the next page within the current partition.
func (c *Checkpoint) AdvancePage() {
	c.CurrentPage++
}

// AdvancePartition moves to the next partition and resets the page cursor.
// Returns false when all partitions are exhausted.
func (c *Checkpoint) AdvancePartition(partitions []types.Partition) bool {
	c.PartitionIndex++
	c.CurrentPage = 1
	if c.PartitionIndex >= len(partitions) {
		return false
	}
	c.CurrentPartition = partitions[c.PartitionIndex]
	return true
}

// RefreshETA recomputes the estimated completion time from elapsed time per
// processed item. The estimate is published only when it is finite and
// non-negative; otherwise it is cleared.
func (c *Checkpoint) RefreshETA(now time.Time) {
	c.UpdatedAt = now.UTC()
	c.EstimatedDoneAt = nil
	if c.Processed <= 0 || c.TotalEstimated <= c.Processed {
		return
	}
	elapsed := now.Sub(c.StartedAt)
	if elapsed <= 0 {
		return
	}
	perItem := elapsed / time.Duration(c.Processed)
	remaining := perItem * time.Duration(c.TotalEstimated-c.Processed)
	if remaining < 0 {
		return
	}
	eta := now.Add(remaining).UTC()
	c.EstimatedDoneAt = &eta
}
