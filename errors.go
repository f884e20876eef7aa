package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrBatchUnsupported is returned when Batch is called on a Batcher
	// directly. Issue individual operations instead; the Batcher coalesces
	// them into batches internally.
	ErrBatchUnsupported = errors.New("batch is not supported on a batching store: call individual operations, batching happens internally")

	// ErrResultMismatch reports a backend that returned a result sequence
	// whose length does not match the dispatched batch.
	ErrResultMismatch = errors.New("backend returned wrong number of batch results")

	// ErrUnknownOp reports an operation outside the Get/Put/Search union.
	ErrUnknownOp = errors.New("unknown operation type")
)
