package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tailored-agentic-units/store/observability"
)

// outcome is the terminal state of a pending request: a positional batch
// result or the error that failed its batch.
type outcome struct {
	value any
	err   error
}

// pendingRequest links an enqueued operation to the caller awaiting its
// result. The done channel is buffered so the drain loop never blocks on a
// caller that abandoned its wait.
type pendingRequest struct {
	op   Op
	done chan outcome
}

// Option configures a Batcher after config-driven initialization.
type Option func(*Batcher)

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(b *Batcher) { b.observer = o }
}

// Batcher is a Store that coalesces concurrently issued operations into
// batches. Each Get/Put/Delete/Search call enqueues one operation and blocks
// until a background drain cycle claims the queue, dispatches it to the
// backend as a single Batch call, and fans the positional results back out.
//
// The queue is the only shared mutable state. Operations are keyed by a
// monotonically increasing counter that is never reused, so sorting claimed
// keys recovers insertion order and result index N always belongs to the
// caller who enqueued operation N.
//
// A Batcher issues at most one outstanding Batch call at a time: the drain
// loop dispatches synchronously, so batch N completes before batch N+1 is
// formed.
type Batcher struct {
	id       string
	backend  BatchStore
	observer observability.Observer
	metrics  *Metrics
	interval time.Duration
	limiter  *rate.Limiter // nil when dispatch is unpaced

	mu      sync.Mutex
	nextKey uint64
	pending map[uint64]*pendingRequest
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ Store = (*Batcher)(nil)

// New creates a Batcher in front of the given backend. A nil cfg uses
// DefaultConfig. The Batcher is created stopped; call Start to launch the
// drain loop.
func New(backend BatchStore, cfg *Config, opts ...Option) (*Batcher, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend store is required")
	}

	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}

	observer, err := observability.GetObserver(merged.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	b := &Batcher{
		id:       uuid.Must(uuid.NewV7()).String(),
		backend:  backend,
		observer: observer,
		metrics:  NewMetrics(),
		interval: merged.TickInterval,
		pending:  make(map[uint64]*pendingRequest),
	}

	if merged.DispatchRate > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(merged.DispatchRate), 1)
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// ID returns the unique batcher identifier carried in emitted events.
func (b *Batcher) ID() string {
	return b.id
}

// Metrics returns a snapshot of dispatch counters.
func (b *Batcher) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// QueueDepth returns the number of operations waiting for the next drain
// cycle. Useful as a shutdown diagnostic: requests still queued when Stop
// returns stay pending until a later Start drains them.
func (b *Batcher) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Running reports whether the drain loop is active.
func (b *Batcher) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start launches the background drain loop. Calling Start while already
// running is a no-op. The context bounds the loop: once it is cancelled the
// loop exits after its current iteration and the batcher returns to the
// stopped state.
func (b *Batcher) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	stop, done := b.stopCh, b.doneCh
	b.mu.Unlock()

	go b.run(ctx, stop, done)

	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventDrainStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "store.Batcher",
		Data: map[string]any{
			"batcher_id":    b.id,
			"tick_interval": b.interval.String(),
		},
	})
}

// Stop signals the drain loop to exit after its current iteration and waits
// for it to finish. An in-flight Batch call is not cancelled; Stop blocks
// until it completes. Calling Stop while already stopped is a no-op.
func (b *Batcher) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	stop, done := b.stopCh, b.doneCh
	b.mu.Unlock()

	close(stop)
	<-done
}

// Get retrieves a single item via the next batch. A missing key yields
// (nil, nil).
func (b *Batcher) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	res, err := b.await(ctx, b.enqueue(GetOp{Namespace: namespace, Key: key}))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	item, ok := res.(*Item)
	if !ok {
		b.warnResultMismatch(ctx, "get", res)
		return nil, fmt.Errorf("%w: %T for get", ErrResultMismatch, res)
	}
	return item, nil
}

// Put creates or overwrites an item via the next batch. A nil value deletes
// the key.
func (b *Batcher) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	_, err := b.await(ctx, b.enqueue(PutOp{Namespace: namespace, Key: key, Value: value}))
	return err
}

// Delete removes an item. Sugar for Put with a nil value; it takes the same
// queuing path.
func (b *Batcher) Delete(ctx context.Context, namespace []string, key string) error {
	return b.Put(ctx, namespace, key, nil)
}

// Search lists items under a namespace prefix via the next batch. Defaults
// are applied before the operation is enqueued.
func (b *Batcher) Search(ctx context.Context, namespacePrefix []string, opts SearchOptions) ([]*Item, error) {
	opts = opts.normalize()
	res, err := b.await(ctx, b.enqueue(SearchOp{
		NamespacePrefix: namespacePrefix,
		Filter:          opts.Filter,
		Limit:           opts.Limit,
		Offset:          opts.Offset,
	}))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	items, ok := res.([]*Item)
	if !ok {
		b.warnResultMismatch(ctx, "search", res)
		return nil, fmt.Errorf("%w: %T for search", ErrResultMismatch, res)
	}
	return items, nil
}

// Batch always fails: the Batcher forms batches internally, and accepting a
// pre-formed batch would bypass coalescing. It exists so Batcher satisfies
// the same Store interface as its backends. The backend is never contacted.
func (b *Batcher) Batch(ctx context.Context, ops []Op) ([]any, error) {
	return nil, ErrBatchUnsupported
}

// enqueue assigns the next key and inserts the request into the live queue.
// It never blocks and never waits for a drain cycle.
func (b *Batcher) enqueue(op Op) *pendingRequest {
	req := &pendingRequest{op: op, done: make(chan outcome, 1)}

	b.mu.Lock()
	key := b.nextKey
	b.nextKey++
	b.pending[key] = req
	b.mu.Unlock()

	return req
}

// await blocks until the request's batch completes or ctx is cancelled.
// Cancellation abandons the wait only: the operation stays queued and its
// eventual result is discarded.
func (b *Batcher) await(ctx context.Context, req *pendingRequest) (any, error) {
	select {
	case out := <-req.done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Batcher) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		// A context-driven exit returns the batcher to the stopped state so
		// Start works again without an intervening Stop. The doneCh check
		// keeps a stale goroutine from clearing the flag after a restart.
		b.mu.Lock()
		if b.doneCh == done {
			b.running = false
		}
		b.mu.Unlock()
	}()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			b.emitDrainStop(ctx, "stop requested")
			return
		case <-ctx.Done():
			b.emitDrainStop(ctx, "context cancelled")
			return
		case <-ticker.C:
			b.drainOnce(ctx)
		}
	}
}

// drainOnce claims the live queue and dispatches it as one batch. The swap is
// a single step under the queue mutex: a concurrent enqueue lands either
// fully in this batch or fully in the next, never between.
func (b *Batcher) drainOnce(ctx context.Context) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	claimed := b.pending
	b.pending = make(map[uint64]*pendingRequest)
	b.mu.Unlock()

	keys := make([]uint64, 0, len(claimed))
	for key := range claimed {
		keys = append(keys, key)
	}
	slices.Sort(keys) // keys are monotonic, so sorted order is insertion order

	ops := make([]Op, len(keys))
	reqs := make([]*pendingRequest, len(keys))
	for i, key := range keys {
		ops[i] = claimed[key].op
		reqs[i] = claimed[key]
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			b.fail(ctx, reqs, err)
			return
		}
	}

	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventBatchDispatch,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "store.Batcher",
		Data: map[string]any{
			"batcher_id": b.id,
			"ops":        len(ops),
		},
	})

	results, err := b.backend.Batch(ctx, ops)
	if err != nil {
		b.metrics.RecordBatchFailure(1)
		b.fail(ctx, reqs, err)
		return
	}
	if len(results) != len(ops) {
		b.metrics.RecordBatchFailure(1)
		b.fail(ctx, reqs, fmt.Errorf("%w: %d results for %d operations", ErrResultMismatch, len(results), len(ops)))
		return
	}

	for i, req := range reqs {
		req.done <- outcome{value: results[i]}
	}

	b.metrics.RecordBatchDispatched(1)
	b.metrics.RecordOpsCoalesced(len(ops))

	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventBatchComplete,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "store.Batcher",
		Data: map[string]any{
			"batcher_id": b.id,
			"ops":        len(ops),
		},
	})
}

// fail delivers the same error to every request claimed for a batch. The
// error is propagated verbatim: no wrapping, no retry.
func (b *Batcher) fail(ctx context.Context, reqs []*pendingRequest, err error) {
	for _, req := range reqs {
		req.done <- outcome{err: err}
	}

	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventBatchError,
		Level:     observability.LevelError,
		Timestamp: time.Now(),
		Source:    "store.Batcher",
		Data: map[string]any{
			"batcher_id": b.id,
			"ops":        len(reqs),
			"error":      err.Error(),
		},
	})
}

func (b *Batcher) warnResultMismatch(ctx context.Context, op string, got any) {
	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventResultMismatch,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "store.Batcher",
		Data: map[string]any{
			"batcher_id": b.id,
			"op":         op,
			"got":        fmt.Sprintf("%T", got),
		},
	})
}

func (b *Batcher) emitDrainStop(ctx context.Context, reason string) {
	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventDrainStop,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "store.Batcher",
		Data: map[string]any{
			"batcher_id":  b.id,
			"reason":      reason,
			"queue_depth": b.QueueDepth(),
		},
	})
}
