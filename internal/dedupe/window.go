// ABOUTME: TTL window of recent chat submissions for double-submit protection
// ABOUTME: Bounded by size with oldest-first eviction; expired entries are swept in the background

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type entry struct {
	at      time.Time
	element *list.Element
}

// Window remembers submission keys for a TTL. It is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewWindow creates a Window. A sweeper goroutine runs every ttl until Close.
func NewWindow(ttl time.Duration, maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = 256
	}
	w := &Window{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go w.sweepLoop()
	}
	return w
}

// SubmissionKey identifies a message sent to a conversation. Whitespace runs are
// collapsed so trailing newlines or double spaces do not defeat the check.
func SubmissionKey(sessionID, text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(sessionID + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}

// Claim records key and reports true, or reports false when key was claimed within the TTL.
func (w *Window) Claim(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if e, ok := w.entries[key]; ok && now.Sub(e.at) < w.ttl {
		return false
	}
	w.recordLocked(key, now)
	return true
}

// Seen reports whether key was claimed within the TTL.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[key]
	return ok && w.now().Sub(e.at) < w.ttl
}

// Release forgets key so the same submission may be retried at once.
func (w *Window) Release(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[key]; ok {
		w.order.Remove(e.element)
		delete(w.entries, key)
	}
}

// Len returns the number of remembered keys, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Window) recordLocked(key string, now time.Time) {
	if e, ok := w.entries[key]; ok {
		e.at = now
		w.order.MoveToBack(e.element)
		return
	}

	if len(w.entries) >= w.maxSize {
		if front := w.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			w.order.Remove(front)
			delete(w.entries, oldest)
		}
	}

	w.entries[key] = &entry{at: now, element: w.order.PushBack(key)}
}

func (w *Window) sweepLoop() {
	ticker := time.NewTicker(w.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.done:
			return
		}
	}
}

// sweep drops expired keys. Entries are in claim order so it stops at the first live one.
func (w *Window) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(w.entries[key].at) < w.ttl {
			return
		}
		w.order.Remove(front)
		delete(w.entries, key)
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (w *Window) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
