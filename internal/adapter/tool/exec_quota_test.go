package tool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQuota(limit int, window time.Duration) (*ExecQuota, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	q := NewExecQuota(limit, window)
	q.now = clock.now
	return q, clock
}

func TestExecQuotaAdmitsUpToLimit(t *testing.T) {
	q, clock := newTestQuota(3, time.Minute)

	for i := 0; i < 3; i++ {
		_, ok := q.Admit()
		require.True(t, ok, "command %d", i+1)
		clock.advance(10 * time.Second)
	}
	assert.Equal(t, 0, q.Remaining())

	refused, ok := q.Admit()
	require.False(t, ok)
	assert.Equal(t, 3, refused.Limit)
	assert.Equal(t, time.Minute, refused.Window)
	assert.Equal(t, 30*time.Second, refused.RetryIn, "first start leaves the window at t=60s")
	assert.Equal(t, "3 of 3 commands used in the last 1m0s, next slot in 30s", refused.String())
}

func TestExecQuotaSlotsFreeAsWindowSlides(t *testing.T) {
	q, clock := newTestQuota(2, time.Minute)

	q.Admit() // t=0
	clock.advance(40 * time.Second)
	q.Admit() // t=40s
	_, ok := q.Admit()
	assert.False(t, ok)

	clock.advance(20 * time.Second) // t=60s, the t=0 start expires
	assert.Equal(t, 1, q.Remaining())
	_, ok = q.Admit()
	assert.True(t, ok)

	clock.advance(39 * time.Second) // t=99s, t=40s start still inside
	_, ok = q.Admit()
	assert.False(t, ok)
}

func TestExecQuotaRefusalsDoNotCount(t *testing.T) {
	q, clock := newTestQuota(1, time.Minute)

	q.Admit()
	for i := 0; i < 5; i++ {
		_, ok := q.Admit()
		assert.False(t, ok)
	}
	clock.advance(time.Minute)
	_, ok := q.Admit()
	assert.True(t, ok)
}

func TestExecQuotaConcurrentAdmits(t *testing.T) {
	q := NewExecQuota(50, time.Minute)

	var mu sync.Mutex
	admitted := 0
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Admit(); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, admitted)
}
