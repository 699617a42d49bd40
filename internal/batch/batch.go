// Package batch runs per-entry extraction work concurrently and stages
// results on disk.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Processor runs independent items on a bounded set of goroutines.
//
// Unlike an errgroup with a shared context, one item failing does not
// cancel the others: every item runs and all failures are reported.
type Processor struct {
	workers int // 0 = GOMAXPROCS, <0 = serial, >0 = fixed count
	budget  *semaphore.Weighted
	limit   int64
	logger  *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of concurrent items.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithMemoryBudget caps the bytes held by concurrent Reserve callers.
// A value <= 0 disables the budget.
func WithMemoryBudget(limit int64) ProcessorOption {
	return func(p *Processor) {
		p.limit = limit
	}
}

// WithProcessorLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a new batch processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	if p.limit > 0 {
		p.budget = semaphore.NewWeighted(p.limit)
	}
	return p
}

// Workers returns the number of items Process runs at once for n items.
func (p *Processor) Workers(n int) int {
	if n < 2 || p.workers < 0 {
		return 1
	}
	workers := p.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return max(1, min(workers, n))
}

// Process calls fn once for each index in [0, n).
//
// Failures are collected per item and returned together with errors.Join,
// in index order. Cancelling ctx stops scheduling new items; items already
// running see the cancellation through ctx and ctx.Err() is included in the
// result.
func (p *Processor) Process(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := p.Workers(n)
	p.log().Debug("batch start", "items", n, "workers", workers)

	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers report through errs

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	p.log().Debug("batch done", "items", n, "failed", failed)

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reserve blocks until size bytes of the memory budget are free and
// returns a func that gives them back. Requests larger than the whole
// budget are clamped to it so they run alone rather than never.
// Without a budget it returns immediately.
func (p *Processor) Reserve(ctx context.Context, size int64) (release func(), err error) {
	if p.budget == nil || size <= 0 {
		return func() {}, nil
	}
	size = min(size, p.limit)
	if err := p.budget.Acquire(ctx, size); err != nil {
		return nil, err
	}
	return func() { p.budget.Release(size) }, nil
}
