package resilience

import (
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the number of operations allowed to run at once.
	// Default: 10
	MaxConcurrent int

	// MaxWait bounds how long an operation waits for a slot.
	// Zero fails immediately when every slot is taken; a negative value
	// waits until the context is done.
	MaxWait time.Duration
}

// Bulkhead limits concurrent operations. Submit turns it into a bounded
// worker pool: callers never block, queued work waits for a free slot.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	active    int
	maxActive int
	queued    int
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, waiting according to MaxWait.
// Returns ErrBulkheadFull if no slot became available.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.enter()
		return nil
	default:
	}

	if b.config.MaxWait == 0 {
		b.reject()
		return ErrBulkheadFull
	}

	var expired <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		b.enter()
		return nil
	case <-expired:
		b.reject()
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	default:
	}
}

// Execute runs op on the calling goroutine once a slot is held.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Submit schedules op on its own goroutine and returns immediately.
// The returned channel receives exactly one value: op's result, or the
// error that kept op from getting a slot.
func (b *Bulkhead) Submit(ctx context.Context, op func(context.Context) error) <-chan error {
	done := make(chan error, 1)

	b.wg.Add(1)
	b.mu.Lock()
	b.queued++
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()

		err := b.Acquire(ctx)
		b.mu.Lock()
		b.queued--
		b.mu.Unlock()
		if err != nil {
			done <- err
			return
		}
		defer b.Release()

		done <- op(ctx)
	}()

	return done
}

// Wait blocks until every submitted operation has finished or ctx is done.
func (b *Bulkhead) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) enter() {
	b.mu.Lock()
	b.active++
	b.maxActive = max(b.maxActive, b.active)
	b.mu.Unlock()
}

func (b *Bulkhead) reject() {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Queued:        b.queued,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Queued        int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
