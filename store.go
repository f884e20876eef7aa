// Package store provides the hierarchical key-value storage layer for the TAU
// runtime, together with a coalescing façade that batches concurrent
// operations. Backends expose a bulk execution entry point; the Batcher
// collects individually-issued calls into one bulk call per tick and fans the
// positional results back to each caller.
package store

import "context"

// BatchStore executes ordered operation batches. Given N operations it returns
// N results in the same order, or fails the whole call with a single error.
// Atomicity across the batch is the implementation's own concern.
type BatchStore interface {
	// Batch executes ops in order and returns one result per op:
	// *Item (possibly nil) for GetOp, nil for PutOp, []*Item for SearchOp.
	Batch(ctx context.Context, ops []Op) ([]any, error)
}

// Store is the full operation surface over the key-value namespace.
// Both backends and the Batcher satisfy it, so callers cannot tell a direct
// store from a batching one.
type Store interface {
	BatchStore

	// Get retrieves a single item. A missing key yields (nil, nil).
	Get(ctx context.Context, namespace []string, key string) (*Item, error)
	// Put creates or overwrites an item. A nil value deletes the key.
	Put(ctx context.Context, namespace []string, key string, value map[string]any) error
	// Delete removes an item. Missing keys are ignored.
	Delete(ctx context.Context, namespace []string, key string) error
	// Search returns items under a namespace prefix, in namespace/key order.
	Search(ctx context.Context, namespacePrefix []string, opts SearchOptions) ([]*Item, error)
}
