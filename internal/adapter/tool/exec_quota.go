package tool

import (
	"fmt"
	"sync"
	"time"
)

// ExecQuota caps how many commands a run may start within a sliding
// window. Only admitted commands count against it.
type ExecQuota struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	started []time.Time // admission times, oldest first
	now     func() time.Time
}

// NewExecQuota allows limit commands per window.
func NewExecQuota(limit int, window time.Duration) *ExecQuota {
	return &ExecQuota{limit: limit, window: window, now: time.Now}
}

// QuotaExceeded describes a refused command.
type QuotaExceeded struct {
	Limit   int
	Window  time.Duration
	RetryIn time.Duration
}

func (q QuotaExceeded) String() string {
	return fmt.Sprintf("%d of %d commands used in the last %s, next slot in %s",
		q.Limit, q.Limit, q.Window, q.RetryIn.Round(time.Second))
}

// Admit records a command start. When the window is full it records
// nothing and reports how long until the oldest start leaves the window.
func (q *ExecQuota) Admit() (QuotaExceeded, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.expire(now)
	if len(q.started) >= q.limit {
		retry := time.Duration(0)
		if len(q.started) > 0 {
			retry = q.started[0].Add(q.window).Sub(now)
		}
		return QuotaExceeded{Limit: q.limit, Window: q.window, RetryIn: retry}, false
	}
	q.started = append(q.started, now)
	return QuotaExceeded{}, true
}

// Remaining reports how many commands may still start in the current window.
func (q *ExecQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expire(q.now())
	if n := q.limit - len(q.started); n > 0 {
		return n
	}
	return 0
}

func (q *ExecQuota) expire(now time.Time) {
	cutoff := now.Add(-q.window)
	i := 0
	for i < len(q.started) && !q.started[i].After(cutoff) {
		i++
	}
	q.started = q.started[i:]
}
