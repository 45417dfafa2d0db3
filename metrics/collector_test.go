package metrics

import "testing"

func TestCollector_Increments(t *testing.T) {
	c := NewCollector("filesystem", "client")

	c.IncFlushSuccess()
	c.IncFlushSuccess()
	c.IncFlushFailure()
	c.IncFlushRetry()
	c.IncOverload()
	c.AddRecorded(10, 1024)

	snap := c.Snapshot()
	if snap.FlushSuccess != 2 {
		t.Errorf("FlushSuccess = %d, want 2", snap.FlushSuccess)
	}
	if snap.FlushFailure != 1 {
		t.Errorf("FlushFailure = %d, want 1", snap.FlushFailure)
	}
	if snap.FlushRetries != 1 {
		t.Errorf("FlushRetries = %d, want 1", snap.FlushRetries)
	}
	if snap.Overloads != 1 {
		t.Errorf("Overloads = %d, want 1", snap.Overloads)
	}
	if snap.SamplesRecorded != 10 || snap.BytesRecorded != 1024 {
		t.Errorf("recorded = (%d, %d), want (10, 1024)", snap.SamplesRecorded, snap.BytesRecorded)
	}
	if snap.BackendType != "filesystem" || snap.BusMode != "client" {
		t.Errorf("dimensions = (%s, %s), want (filesystem, client)", snap.BackendType, snap.BusMode)
	}
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	var c *Collector

	c.IncFlushSuccess()
	c.IncFlushFailure()
	c.IncFlushRetry()
	c.IncOverload()
	c.AddRecorded(5, 50)

	if snap := c.Snapshot(); snap != (Snapshot{}) {
		t.Errorf("nil collector snapshot = %+v, want zero value", snap)
	}
}
