// Package overload tracks request and rate-limit-denial outcomes in a
// sliding window. Feeds the rate-limit gauges exposed on /metrics.
package overload

import (
	"sync"
	"time"
)

var defaultTracker Tracker

// RecordRequest records a request hitting the rate-limited path.
func RecordRequest() {
	defaultTracker.RecordRequest()
}

// RecordDenial records a rate-limit denial (429). Call from middleware when returning 429.
func RecordDenial() {
	defaultTracker.RecordDenial()
}

// RequestCount returns the number of outcomes (served + denied) within the given window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the given window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// Reset clears all recorded data. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu          sync.Mutex
	servedTimes []time.Time
	deniedTimes []time.Time
}

// RecordRequest records a served request in the tracker.
func (t *Tracker) RecordRequest() {
	t.recordOutcome(&t.servedTimes)
}

// RecordDenial records a rate-limit denial in the tracker.
func (t *Tracker) RecordDenial() {
	t.recordOutcome(&t.deniedTimes)
}

// recordOutcome appends the current timestamp and prunes old entries.
func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns served + denied outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	return countInWindow(t.servedTimes, cutoff) + countInWindow(t.deniedTimes, cutoff)
}

// DenialCount returns denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.deniedTimes, time.Now().Add(-window))
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.servedTimes = nil
	t.deniedTimes = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked removes timestamps older than maxAge from both outcome slices.
// Must be called with the mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	const maxAge = 5 * time.Minute
	cutoff := now.Add(-maxAge)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.servedTimes)
	prune(&t.deniedTimes)
}
