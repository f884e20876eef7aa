package store

import "sync/atomic"

// MetricsSnapshot is a point-in-time view of Batcher counters.
type MetricsSnapshot struct {
	BatchesDispatched int64
	OpsCoalesced      int64
	BatchFailures     int64
}

// Metrics tracks Batcher dispatch counters.
type Metrics struct {
	batchesDispatched atomic.Int64
	opsCoalesced      atomic.Int64
	batchFailures     atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordBatchDispatched(delta int) {
	m.batchesDispatched.Add(int64(delta))
}

func (m *Metrics) RecordOpsCoalesced(delta int) {
	m.opsCoalesced.Add(int64(delta))
}

func (m *Metrics) RecordBatchFailure(delta int) {
	m.batchFailures.Add(int64(delta))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BatchesDispatched: m.batchesDispatched.Load(),
		OpsCoalesced:      m.opsCoalesced.Load(),
		BatchFailures:     m.batchFailures.Load(),
	}
}
