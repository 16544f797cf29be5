// Package orchestrator drives the fetch-transform-load loop: one partition
// at a time, one page at a time, batching transformed records into the sink
// and checkpointing after every flush so the run can be resumed exactly
// where it stopped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/savori/ingredient-sync/internal/checkpoint"
	"github.com/savori/ingredient-sync/internal/fdc"
	"github.com/savori/ingredient-sync/internal/loader"
	"github.com/savori/ingredient-sync/internal/transform"
	"github.com/savori/ingredient-sync/internal/types"
)

const (
	// DefaultCheckpointEvery is the item-count interval at which progress is
	// persisted even when no batch-size flush has happened.
	DefaultCheckpointEvery = 500

	// drainTimeout bounds the final flush performed after cancellation,
	// when the run context is already dead.
	drainTimeout = 30 * time.Second

	lowRateWarning = 5
)

// fallbackPartitionCounts approximates partition sizes when the discovery
// count query fails. The numbers only feed ETA display, never correctness.
var fallbackPartitionCounts = map[types.Partition]int{
	types.PartitionFoundation: 2_500,
	types.PartitionSRLegacy:   7_800,
	types.PartitionSurvey:     26_000,
	types.PartitionBranded:    450_000,
}

// Fetcher pulls pages of source records. Satisfied by *fdc.Client.
type Fetcher interface {
	FetchPage(ctx context.Context, partition types.Partition, pageNumber int) (*fdc.Page, error)
	Count(ctx context.Context, partition types.Partition) (int, error)
}

// Store persists checkpoints. Satisfied by *checkpoint.FileStore.
type Store interface {
	Load() (*checkpoint.Checkpoint, error)
	Save(*checkpoint.Checkpoint) error
}

// Options wires the pipeline together.
type Options struct {
	Fetcher     Fetcher
	Transformer *transform.Transformer
	Sink        loader.Sink
	Store       Store

	BatchSize       int
	CheckpointEvery int
	Partitions      []types.Partition
	Verbose         bool
}

// Orchestrator runs the ingestion state loop. It is the single writer of
// the checkpoint; all mutation flows through its flush-and-persist step.
type Orchestrator struct {
	opts           Options
	itemsSinceSave int
}

// New validates wiring and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Fetcher == nil || opts.Transformer == nil || opts.Sink == nil || opts.Store == nil {
		return nil, fmt.Errorf("orchestrator requires fetcher, transformer, sink and store")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = loader.DefaultBatchSize
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if len(opts.Partitions) == 0 {
		opts.Partitions = types.Partitions()
	}
	return &Orchestrator{opts: opts}, nil
}

// Run executes the pipeline until the source is exhausted, a fatal
// condition halts it, or the context is cancelled. If a checkpoint exists it
// resumes from it; otherwise it initializes one, estimating totals up
// front.
//
// Fatal conditions (auth rejection, throttle ceiling, unwritable checkpoint
// store) return an error after best-effort persistence, so a later resume
// is safe by construction.
func (o *Orchestrator) Run(ctx context.Context) error {
	cp, err := o.opts.Store.Load()
	if err != nil {
		return fmt.Errorf("cannot read checkpoint store: %w", err)
	}

	if cp == nil {
		cp = checkpoint.New(o.opts.Partitions)
		cp.TotalEstimated = o.estimateTotal(ctx)
		if err := o.opts.Store.Save(cp); err != nil {
			return fmt.Errorf("cannot write checkpoint store: %w", err)
		}
		fmt.Printf("Starting fresh run %s (~%d items across %d partitions)\n",
			cp.RunID, cp.TotalEstimated, len(o.opts.Partitions))
	} else {
		fmt.Printf("Resuming run %s at %s page %d (%d processed so far)\n",
			cp.RunID, cp.CurrentPartition, cp.CurrentPage, cp.Processed)
	}

	for cp.PartitionIndex < len(o.opts.Partitions) {
		// Cancellation is honored between pages, never mid-batch-write.
		if ctx.Err() != nil {
			o.drain(cp)
			return fmt.Errorf("run interrupted: %w", ctx.Err())
		}

		page, err := o.opts.Fetcher.FetchPage(ctx, cp.CurrentPartition, cp.CurrentPage)
		if err != nil {
			if fatal := o.handleFetchError(ctx, cp, err); fatal != nil {
				return fatal
			}
			continue
		}

		if page.RateRemaining >= 0 && page.RateRemaining < lowRateWarning {
			fmt.Printf("[%s] warning: provider reports only %d requests remaining\n",
				cp.CurrentPartition, page.RateRemaining)
		}

		if len(page.Records) == 0 {
			fmt.Printf("[%s] exhausted after %d pages\n", cp.CurrentPartition, cp.CurrentPage-1)
			more := cp.AdvancePartition(o.opts.Partitions)
			if err := o.flushAndPersist(ctx, cp); err != nil {
				return err
			}
			if !more {
				break
			}
			continue
		}

		for _, rec := range page.Records {
			cp.Buffer = append(cp.Buffer, o.opts.Transformer.Transform(rec))
			cp.Processed++
			o.itemsSinceSave++
		}
		if o.opts.Verbose {
			fmt.Printf("[%s] page %d: %d records (total %d)\n",
				cp.CurrentPartition, cp.CurrentPage, len(page.Records), cp.Processed)
		}
		cp.AdvancePage()

		if len(cp.Buffer) >= o.opts.BatchSize || o.itemsSinceSave >= o.opts.CheckpointEvery {
			if err := o.flushAndPersist(ctx, cp); err != nil {
				return err
			}
		}
	}

	// Draining: flush whatever is still buffered after the last partition.
	if err := o.flushAndPersist(ctx, cp); err != nil {
		return err
	}
	if len(cp.Buffer) > 0 {
		return o.failDrain(cp)
	}
	fmt.Printf("Done. %d processed, %d inserted, %d duplicates, %d errors.\n",
		cp.Processed, cp.Inserted, cp.Skipped, len(cp.Errors))
	return nil
}

// failDrain reports a final flush that could not write its buffer. The
// in-memory cursor already points past the unwritten records, so saving it
// would lose them on resume; instead the failure is appended to the last
// consistent checkpoint on disk, where status surfaces it, and the run fails
// so a resume refetches the records.
func (o *Orchestrator) failDrain(cp *checkpoint.Checkpoint) error {
	if saved, err := o.opts.Store.Load(); err == nil && saved != nil {
		saved.LogError(fmt.Sprintf("final flush left %d records unwritten; resume to refetch them", len(cp.Buffer)))
		saved.UpdatedAt = time.Now().UTC()
		if err := o.opts.Store.Save(saved); err != nil {
			fmt.Printf("warning: failed to persist checkpoint: %v\n", err)
		}
	}
	return fmt.Errorf("final flush failed: %d records unwritten", len(cp.Buffer))
}

// handleFetchError classifies a page fetch failure. Page-level failures are
// absorbed: logged into the checkpoint and the cursor advanced, because one
// bad page must not halt a multi-week run. Run-level failures flush what we
// have and propagate.
func (o *Orchestrator) handleFetchError(ctx context.Context, cp *checkpoint.Checkpoint, err error) error {
	var throttled *fdc.ThrottledError
	var auth *fdc.FatalAuthError

	switch {
	case errors.As(err, &throttled), errors.As(err, &auth):
		o.drain(cp)
		return err
	case ctx.Err() != nil:
		o.drain(cp)
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	default:
		cp.LogError(fmt.Sprintf("%s page %d: %v", cp.CurrentPartition, cp.CurrentPage, err))
		fmt.Printf("[%s] page %d failed, skipping: %v\n", cp.CurrentPartition, cp.CurrentPage, err)
		cp.AdvancePage()
		return o.flushAndPersist(ctx, cp)
	}
}

// flushAndPersist upserts the buffered batch and then persists the
// checkpoint. The checkpoint is only ever saved with an empty buffer, so a
// persisted cursor never points past records that were not written.
func (o *Orchestrator) flushAndPersist(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if len(cp.Buffer) > 0 {
		written, err := o.opts.Sink.Upsert(ctx, cp.Buffer)
		if err != nil {
			// Full batch failure: keep the buffer, the next flush retries it.
			cp.LogError(fmt.Sprintf("batch upsert failed: %v", err))
			fmt.Printf("warning: batch upsert failed, will retry: %v\n", err)
			return nil
		}
		cp.Inserted += written
		cp.Skipped += len(cp.Buffer) - written
		cp.Buffer = nil
	}

	cp.RefreshETA(time.Now())
	o.itemsSinceSave = 0
	if err := o.opts.Store.Save(cp); err != nil {
		return fmt.Errorf("cannot write checkpoint store: %w", err)
	}
	return nil
}

// drain is the best-effort final flush on the way out of a failing or
// cancelled run. With an empty buffer the last persisted checkpoint is
// already consistent, so there is nothing to write and the failed request
// leaves no trace. The run context may already be dead, so the flush uses
// its own bounded one.
func (o *Orchestrator) drain(cp *checkpoint.Checkpoint) {
	if len(cp.Buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := o.flushAndPersist(ctx, cp); err != nil {
		fmt.Printf("warning: failed to persist checkpoint during shutdown: %v\n", err)
	}
	if len(cp.Buffer) > 0 {
		fmt.Printf("warning: %d buffered records not written; resume will refetch them\n", len(cp.Buffer))
	}
}

// estimateTotal queries an approximate item count per partition. The count
// endpoint is cheap and cross-partition order does not matter, so the
// queries run concurrently; any failure falls back to a fixed estimate.
func (o *Orchestrator) estimateTotal(ctx context.Context) int {
	var mu sync.Mutex
	total := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range o.opts.Partitions {
		p := p
		g.Go(func() error {
			n, err := o.opts.Fetcher.Count(gctx, p)
			if err != nil || n <= 0 {
				n = fallbackPartitionCounts[p]
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; fallbacks absorb them
	return total
}
