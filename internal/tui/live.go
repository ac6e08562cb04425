package tui

import (
	"context"
	"sync"
	"time"
)

// liveView is the session renderer used by the TUI. The session calls it
// from its own goroutines; View reads a snapshot on every frame.
type liveView struct {
	mu         sync.Mutex
	cursor     int
	mismatchAt int
	elapsed    time.Duration
}

type liveSnapshot struct {
	cursor     int
	mismatchAt int
	elapsed    time.Duration
}

func newLiveView() *liveView {
	return &liveView{mismatchAt: -1}
}

func (v *liveView) Accepted(pos int, _ rune) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cursor = pos + 1
	v.mismatchAt = -1
}

func (v *liveView) Mismatch(pos int, _ rune) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mismatchAt = pos
}

func (v *liveView) Elapsed(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.elapsed = d
}

func (v *liveView) snapshot() liveSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return liveSnapshot{cursor: v.cursor, mismatchAt: v.mismatchAt, elapsed: v.elapsed}
}

// keyQueue feeds keys from the Bubble Tea update loop to the session input
// loop. Update must never block, so a full queue drops the key.
type keyQueue struct {
	ch chan rune
}

func newKeyQueue(size int) *keyQueue {
	return &keyQueue{ch: make(chan rune, size)}
}

func (q *keyQueue) push(r rune) bool {
	select {
	case q.ch <- r:
		return true
	default:
		return false
	}
}

func (q *keyQueue) ReadKey(ctx context.Context) (rune, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-q.ch:
		return r, nil
	}
}
