package retry

import (
	"sync"
	"time"
)

// RecordingTimer fires immediately and remembers every requested delay.
type RecordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

// NewRecordingTimer creates a RecordingTimer.
func NewRecordingTimer() *RecordingTimer {
	return &RecordingTimer{c: make(chan time.Time, 1)}
}

// Start records d and fires the channel without waiting.
func (t *RecordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

// Stop is a no-op.
func (t *RecordingTimer) Stop() {}

// C returns the timer channel.
func (t *RecordingTimer) C() <-chan time.Time {
	return t.c
}

// Delays returns the recorded delays in order.
func (t *RecordingTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Duration, len(t.delays))
	copy(out, t.delays)
	return out
}
