package gateway

import (
	"testing"
	"time"
)

func TestRateCounterBuckets(t *testing.T) {
	rc := NewRateCounter(100 * time.Second)
	base := time.Unix(1000, 0) // bucket 10

	for i := 1; i <= 3; i++ {
		if got := rc.Add(base.Add(time.Duration(i) * time.Second)); got != i {
			t.Fatalf("Add #%d = %d", i, got)
		}
	}
	next := base.Add(100 * time.Second)
	if got := rc.Add(next); got != 1 {
		t.Errorf("first call in new bucket = %d, want 1", got)
	}
	if got := rc.Previous(next); got != 3 {
		t.Errorf("Previous = %d, want 3", got)
	}
	if got := rc.Count(base); got != 3 {
		t.Errorf("Count(old bucket) = %d, want 3", got)
	}

	// two buckets later the oldest one is pruned
	later := base.Add(300 * time.Second)
	rc.Add(later)
	if got := rc.Count(base); got != 0 {
		t.Errorf("stale bucket kept: %d", got)
	}
}

func TestRateCounterDefaultWindow(t *testing.T) {
	rc := NewRateCounter(0)
	if rc.window != quotaWindow {
		t.Errorf("window = %v, want %v", rc.window, quotaWindow)
	}
}
