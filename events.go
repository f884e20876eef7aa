package store

import "github.com/tailored-agentic-units/store/observability"

// Batcher event types emitted during the drain lifecycle.
const (
	EventDrainStart    observability.EventType = "store.drain.start"
	EventDrainStop     observability.EventType = "store.drain.stop"
	EventBatchDispatch observability.EventType = "store.batch.dispatch"
	EventBatchComplete observability.EventType = "store.batch.complete"
	EventBatchError    observability.EventType = "store.batch.error"

	// EventResultMismatch reports a backend result whose dynamic type does
	// not fit the operation it answers.
	EventResultMismatch observability.EventType = "store.batch.result_mismatch"
)
