package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// manualClock never fires timers; time only moves when set explicitly.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

// steppingClock jumps forward by the requested duration whenever a timer is
// armed, so the timer loop runs through the whole budget instantly.
type steppingClock struct {
	manualClock
}

func newSteppingClock() *steppingClock {
	return &steppingClock{manualClock: manualClock{now: time.Unix(1_700_000_000, 0)}}
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// scriptedKeys replays a fixed string and then blocks until ctx is done.
type scriptedKeys struct {
	mu    sync.Mutex
	keys  []rune
	after error
}

func (k *scriptedKeys) ReadKey(ctx context.Context) (rune, error) {
	k.mu.Lock()
	if len(k.keys) > 0 {
		r := k.keys[0]
		k.keys = k.keys[1:]
		k.mu.Unlock()
		return r, nil
	}
	err := k.after
	k.mu.Unlock()
	if err != nil {
		return 0, err
	}
	<-ctx.Done()
	return 0, ctx.Err()
}

type event struct {
	kind string
	pos  int
	r    rune
}

type recordingRenderer struct {
	mu      sync.Mutex
	events  []event
	elapsed []time.Duration
}

func (r *recordingRenderer) Accepted(pos int, ch rune) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "ok", pos: pos, r: ch})
}

func (r *recordingRenderer) Mismatch(pos int, expected rune) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "miss", pos: pos, r: expected})
}

func (r *recordingRenderer) Elapsed(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elapsed = append(r.elapsed, d)
}

func TestRunCompletesOnFullPassage(t *testing.T) {
	text := "страна как знать"
	s := New(text, WithClock(newManualClock()))
	keys := &scriptedKeys{keys: []rune(text)}

	res, err := s.Run(context.Background(), keys)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := len([]rune(text))
	if res.Typed != want || s.Cursor() != want {
		t.Fatalf("expected cursor %d, got result %d cursor %d", want, res.Typed, s.Cursor())
	}
	if !s.Done() || !res.Completed {
		t.Fatalf("expected completed session")
	}
	if res.Elapsed != 0 || res.CPM != 0 {
		t.Fatalf("expected zero elapsed and score, got %s %d", res.Elapsed, res.CPM)
	}
}

func TestMismatchDoesNotAdvance(t *testing.T) {
	s := New("abc", WithClock(newManualClock()))
	for i := 0; i < 10; i++ {
		if s.Keystroke('x') {
			t.Fatalf("wrong key accepted")
		}
	}
	if s.Cursor() != 0 {
		t.Fatalf("expected cursor 0, got %d", s.Cursor())
	}
	if s.Done() {
		t.Fatalf("expected session to still be running")
	}
}

func TestKeystrokeFeedback(t *testing.T) {
	rec := &recordingRenderer{}
	s := New("abc", WithClock(newManualClock()), WithRenderer(rec))
	res, err := s.Run(context.Background(), &scriptedKeys{keys: []rune("axbc")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Typed != 3 || res.Mistakes != 1 {
		t.Fatalf("expected 3 typed and 1 mistake, got %+v", res)
	}
	want := []event{
		{kind: "ok", pos: 0, r: 'a'},
		{kind: "miss", pos: 1, r: 'b'},
		{kind: "ok", pos: 1, r: 'b'},
		{kind: "ok", pos: 2, r: 'c'},
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d: got %+v, want %+v", i, rec.events[i], want[i])
		}
	}
}

func TestKeystrokeIgnoredAfterDone(t *testing.T) {
	s := New("a", WithClock(newManualClock()))
	if !s.Keystroke('a') {
		t.Fatalf("expected first key to be accepted")
	}
	if s.Keystroke('a') {
		t.Fatalf("expected key after completion to be ignored")
	}
	if s.Cursor() != 1 {
		t.Fatalf("cursor moved past the end: %d", s.Cursor())
	}
}

func TestTimerEndsIdleSession(t *testing.T) {
	clock := newSteppingClock()
	rec := &recordingRenderer{}
	s := New("abc", WithClock(clock), WithRenderer(rec))

	res, err := s.Run(context.Background(), &scriptedKeys{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !s.Done() || res.Completed {
		t.Fatalf("expected timed out session, got %+v", res)
	}
	if res.Typed != 0 {
		t.Fatalf("expected no progress, got %d", res.Typed)
	}
	if res.Elapsed != 30*time.Second {
		t.Fatalf("expected 30s elapsed, got %s", res.Elapsed)
	}
	if res.CPM != 0 {
		t.Fatalf("expected score 0, got %d", res.CPM)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.elapsed) != 30 {
		t.Fatalf("expected 30 elapsed updates, got %d", len(rec.elapsed))
	}
	if rec.elapsed[0] != 0 || rec.elapsed[29] != 29*time.Second {
		t.Fatalf("unexpected elapsed updates: %v", rec.elapsed)
	}
}

func TestTimerHonoursCustomLimit(t *testing.T) {
	clock := newSteppingClock()
	s := New("abc", WithClock(clock), WithTimeLimit(2500*time.Millisecond))
	res, err := s.Run(context.Background(), &scriptedKeys{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Elapsed != 2500*time.Millisecond {
		t.Fatalf("expected run to stop at the limit, got %s", res.Elapsed)
	}
}

func TestRunPropagatesReadError(t *testing.T) {
	s := New("abc", WithClock(newManualClock()))
	_, err := s.Run(context.Background(), &scriptedKeys{keys: []rune("a"), after: io.EOF})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if s.Cursor() != 1 {
		t.Fatalf("expected progress before the error to be kept, got %d", s.Cursor())
	}
}

func TestRunAbortedByContext(t *testing.T) {
	s := New("abc", WithClock(newManualClock()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, &scriptedKeys{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestRunTwiceFails(t *testing.T) {
	s := New("a", WithClock(newManualClock()))
	if _, err := s.Run(context.Background(), &scriptedKeys{keys: []rune("a")}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err := s.Run(context.Background(), &scriptedKeys{})
	if err == nil || !strings.Contains(err.Error(), "already finished") {
		t.Fatalf("expected already finished error, got %v", err)
	}
}
