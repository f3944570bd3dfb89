// ABOUTME: Tests for the submission window used against chat double-submits
// ABOUTME: Uses an injected clock for TTL behavior and checks eviction and concurrency

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWindow(ttl time.Duration, size int) (*Window, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewWindow(ttl, size)
	w.now = clock.now
	return w, clock
}

func TestWindow_ClaimRejectsDuplicateWithinTTL(t *testing.T) {
	w, clock := newTestWindow(2*time.Second, 10)
	defer w.Close()

	key := SubmissionKey("s1", "hello")
	assert.True(t, w.Claim(key))
	assert.False(t, w.Claim(key))
	assert.True(t, w.Seen(key))

	clock.advance(2 * time.Second)
	assert.False(t, w.Seen(key))
	assert.True(t, w.Claim(key), "expired keys can be claimed again")
}

func TestWindow_Release(t *testing.T) {
	w, _ := newTestWindow(time.Minute, 10)
	defer w.Close()

	key := SubmissionKey("s1", "retry me")
	assert.True(t, w.Claim(key))
	w.Release(key)
	assert.Equal(t, 0, w.Len())
	assert.True(t, w.Claim(key))

	// Releasing an unknown key is a no-op
	w.Release("missing")
}

func TestWindow_EvictsOldest(t *testing.T) {
	w, clock := newTestWindow(time.Hour, 2)
	defer w.Close()

	w.Claim("a")
	clock.advance(time.Millisecond)
	w.Claim("b")
	clock.advance(time.Millisecond)
	w.Claim("c")

	assert.Equal(t, 2, w.Len())
	assert.False(t, w.Seen("a"))
	assert.True(t, w.Seen("b"))
	assert.True(t, w.Seen("c"))
}

func TestWindow_Sweep(t *testing.T) {
	w, clock := newTestWindow(time.Second, 10)
	defer w.Close()

	w.Claim("old")
	clock.advance(800 * time.Millisecond)
	w.Claim("new")
	clock.advance(300 * time.Millisecond)

	w.sweep()
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Seen("new"))
}

func TestSubmissionKey(t *testing.T) {
	assert.Equal(t, SubmissionKey("s", "hello  world\n"), SubmissionKey("s", " hello world"))
	assert.NotEqual(t, SubmissionKey("s1", "hello"), SubmissionKey("s2", "hello"))
	assert.NotEqual(t, SubmissionKey("s", "hello"), SubmissionKey("s", "Hello"))
	// The separator keeps session and text apart
	assert.NotEqual(t, SubmissionKey("ab", "c"), SubmissionKey("a", "bc"))
}

func TestWindow_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	w := NewWindow(time.Minute, 100)
	defer w.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Claim("same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestWindow_CloseIsIdempotent(t *testing.T) {
	w := NewWindow(10*time.Millisecond, 10)
	w.Close()
	w.Close()
}
