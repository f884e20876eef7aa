package store_test

import (
	"testing"

	"github.com/tailored-agentic-units/store"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := store.NewMetrics()

	m.RecordBatchDispatched(1)
	m.RecordOpsCoalesced(7)
	m.RecordBatchDispatched(1)
	m.RecordOpsCoalesced(3)
	m.RecordBatchFailure(1)

	snap := m.Snapshot()
	if snap.BatchesDispatched != 2 {
		t.Errorf("BatchesDispatched = %d, want 2", snap.BatchesDispatched)
	}
	if snap.OpsCoalesced != 10 {
		t.Errorf("OpsCoalesced = %d, want 10", snap.OpsCoalesced)
	}
	if snap.BatchFailures != 1 {
		t.Errorf("BatchFailures = %d, want 1", snap.BatchFailures)
	}
}

func TestMetrics_ZeroValue(t *testing.T) {
	snap := store.NewMetrics().Snapshot()
	if snap.BatchesDispatched != 0 || snap.OpsCoalesced != 0 || snap.BatchFailures != 0 {
		t.Errorf("fresh metrics snapshot = %+v, want zeroes", snap)
	}
}
