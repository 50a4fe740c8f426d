package gateway

import (
	"sync"
	"time"
)

// quotaWindow matches the Sheets per-user quota window.
const quotaWindow = 100 * time.Second

// RateCounter counts calls per coarse time bucket. It never blocks or
// rejects a call; the count only annotates logs and metrics.
type RateCounter struct {
	window time.Duration

	mu      sync.Mutex
	buckets map[int64]int
}

// NewRateCounter returns a counter bucketed by window (quotaWindow when <= 0).
func NewRateCounter(window time.Duration) *RateCounter {
	if window <= 0 {
		window = quotaWindow
	}
	return &RateCounter{window: window, buckets: make(map[int64]int)}
}

func (rc *RateCounter) bucket(t time.Time) int64 { return t.UnixNano() / int64(rc.window) }

// Add records one call at t and returns the count for t's bucket.
func (rc *RateCounter) Add(t time.Time) int {
	b := rc.bucket(t)
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.buckets[b]++
	// only the current and previous bucket are ever read
	for k := range rc.buckets {
		if k < b-1 {
			delete(rc.buckets, k)
		}
	}
	return rc.buckets[b]
}

// Count returns the number of calls recorded in t's bucket.
func (rc *RateCounter) Count(t time.Time) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.buckets[rc.bucket(t)]
}

// Previous returns the count of the bucket before t's bucket.
func (rc *RateCounter) Previous(t time.Time) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.buckets[rc.bucket(t)-1]
}
