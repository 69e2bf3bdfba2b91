// Package engine drives a price run: it partitions the input into
// batches, fans each item out to every configured source, funnels the
// answers through a single collector, and checkpoints progress so an
// interrupted run leaves a recoverable snapshot behind.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/price-scout/internal/checkpoint"
	"github.com/sells-group/price-scout/internal/config"
	"github.com/sells-group/price-scout/internal/model"
)

// Plan fixes the run cadence: how many items go in a batch, how often
// progress is checkpointed, and how long the engine pauses between
// batches.
type Plan struct {
	BatchSize          int
	CheckpointInterval int
	InterBatchDelay    time.Duration
}

// PlanFor derives a plan from one source's configuration.
func PlanFor(sc config.SourceConfig) Plan {
	return Plan{
		BatchSize:          sc.BatchSize,
		CheckpointInterval: sc.CheckpointInterval,
		InterBatchDelay:    sc.InterBatchDelay(),
	}
}

// ConservativePlan merges the plans of several sources for a combined
// run: the smallest batch, the most frequent checkpoint, the longest
// pause. The slowest source sets the pace for everyone.
func ConservativePlan(scs []config.SourceConfig) Plan {
	var plan Plan
	for i, sc := range scs {
		p := PlanFor(sc)
		if i == 0 {
			plan = p
			continue
		}
		if p.BatchSize < plan.BatchSize {
			plan.BatchSize = p.BatchSize
		}
		if p.CheckpointInterval < plan.CheckpointInterval {
			plan.CheckpointInterval = p.CheckpointInterval
		}
		if p.InterBatchDelay > plan.InterBatchDelay {
			plan.InterBatchDelay = p.InterBatchDelay
		}
	}
	if plan.BatchSize <= 0 {
		plan.BatchSize = 50
	}
	return plan
}

// Lookup is the per-source search the engine fans out to. It matches
// source.Source so concrete workers plug in directly.
type Lookup interface {
	Name() string
	Search(ctx context.Context, query string) (model.SourceResult, error)
}

// Outcome is what a run produced: every collected result, how many
// items completed, and whether the run finished or was cut short.
type Outcome struct {
	Status    model.RunStatus
	Record    model.Record
	Processed int
}

// Engine runs lookups against a fixed set of sources under one plan.
type Engine struct {
	sources []Lookup
	plan    Plan
	ckpt    *checkpoint.Manager
	log     *zap.Logger
}

// New creates an engine. ckpt may be nil to disable checkpointing. A
// non-positive batch size means a single batch holding everything.
func New(sources []Lookup, plan Plan, ckpt *checkpoint.Manager) *Engine {
	if plan.BatchSize < 0 {
		plan.BatchSize = 0
	}
	return &Engine{
		sources: sources,
		plan:    plan,
		ckpt:    ckpt,
		log:     zap.L().With(zap.String("component", "engine")),
	}
}

// SourceNames returns the engine's source names in fan-out order.
func (e *Engine) SourceNames() []string {
	names := make([]string, len(e.sources))
	for i, s := range e.sources {
		names[i] = s.Name()
	}
	return names
}

// completion is one item's full set of per-source answers, sent to the
// collector as a unit so the record never holds a half-finished item
// longer than a lookup takes.
type completion struct {
	item    model.WorkItem
	results map[string]model.SourceResult
}

// Run processes items batch by batch until the list is exhausted or ctx
// is cancelled. Cancellation is a request to wind down, not an error:
// in-flight lookups finish, no new ones start, a final checkpoint is
// written and retained, and the outcome reports RunInterrupted with
// everything collected so far.
func (e *Engine) Run(ctx context.Context, items []model.WorkItem) (*Outcome, error) {
	names := e.SourceNames()
	rec := make(model.Record, len(items))

	completions := make(chan completion, e.plan.BatchSize)
	collectorDone := make(chan struct{})

	var processed atomic.Int64

	// Single collector goroutine: the only writer of rec while the run
	// is live, which is what lets checkpoint clones be taken safely.
	go func() {
		defer close(collectorDone)
		for c := range completions {
			for src, res := range c.results {
				rec.Set(c.item.Key, src, res)
			}
			n := int(processed.Add(1))
			if e.ckpt != nil {
				e.ckpt.Maybe(n, names, rec.Clone())
			}
		}
	}()

	// In-flight lookups must survive the interrupt signal; they get a
	// context detached from cancellation. Per-request timeouts still
	// apply through each executor's HTTP client.
	lookupCtx := context.WithoutCancel(ctx)

	batches := partition(items, e.plan.BatchSize)
	e.log.Info("run starting",
		zap.Int("items", len(items)),
		zap.Int("batches", len(batches)),
		zap.Strings("sources", names),
	)

	interrupted := false
batchLoop:
	for bi, batch := range batches {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		var g errgroup.Group
		for _, item := range batch {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			if item.Key == "" {
				continue
			}
			item := item
			g.Go(func() error {
				completions <- completion{item: item, results: e.lookup(lookupCtx, item.Key)}
				return nil
			})
		}
		_ = g.Wait()

		e.log.Info("batch complete",
			zap.Int("batch", bi+1),
			zap.Int("of", len(batches)),
			zap.Int64("processed", processed.Load()),
		)

		if interrupted {
			break
		}
		if e.plan.InterBatchDelay > 0 && bi < len(batches)-1 {
			select {
			case <-time.After(e.plan.InterBatchDelay):
			case <-ctx.Done():
				interrupted = true
				break batchLoop
			}
		}
	}

	close(completions)
	<-collectorDone

	n := int(processed.Load())
	status := model.RunCompleted
	if interrupted || ctx.Err() != nil {
		status = model.RunInterrupted
	}

	if e.ckpt != nil {
		if err := e.ckpt.Finalize(status == model.RunCompleted, n, names, rec); err != nil {
			e.log.Warn("finalize checkpoint", zap.Error(err))
		}
	}

	e.log.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("processed", n),
	)
	return &Outcome{Status: status, Record: rec, Processed: n}, nil
}

// lookup queries every source for one product. Sources run in parallel;
// a failed lookup is recorded as an error result and never takes other
// sources' answers down with it.
func (e *Engine) lookup(ctx context.Context, key string) map[string]model.SourceResult {
	results := make([]model.SourceResult, len(e.sources))

	var g errgroup.Group
	for i, src := range e.sources {
		i, src := i, src
		g.Go(func() error {
			res, err := src.Search(ctx, key)
			if err != nil {
				e.log.Warn("lookup failed",
					zap.String("source", src.Name()),
					zap.String("key", key),
					zap.Error(err),
				)
				results[i] = model.ErrorResult()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]model.SourceResult, len(e.sources))
	for i, src := range e.sources {
		out[src.Name()] = results[i]
	}
	return out
}

// partition splits items into consecutive batches of at most size. The
// last batch holds the remainder.
func partition(items []model.WorkItem, size int) [][]model.WorkItem {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}
	var out [][]model.WorkItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
