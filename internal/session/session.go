// Package session runs a single timed typing test.
//
// A Session owns the reference text and the cursor into it. Run starts an
// input loop, which applies keystrokes read from a KeySource, and a timer
// loop, which reports elapsed time and ends the test once the time limit is
// reached. Both loops share one mutex; whichever finishes first marks the
// session done and the other exits. Run returns after both have stopped.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/sprint/internal/model"
	"github.com/verte-zerg/sprint/internal/stats"
)

// Tick is the interval between elapsed-time updates.
const Tick = time.Second

// KeySource delivers typed characters one at a time. ReadKey blocks until a
// key is available or ctx is done.
type KeySource interface {
	ReadKey(ctx context.Context) (rune, error)
}

// Renderer receives visual feedback from the loops. Calls from the input
// loop are made while the session lock is held.
type Renderer interface {
	Accepted(pos int, r rune)
	Mismatch(pos int, expected rune)
	Elapsed(d time.Duration)
}

// Result summarises a finished session.
type Result struct {
	StartedAt time.Time
	EndedAt   time.Time
	Elapsed   time.Duration
	Typed     int
	Mistakes  int
	CPM       int
	Completed bool
}

// Session is the state of one test run.
type Session struct {
	text   []rune
	limit  time.Duration
	clock  Clock
	render Renderer

	mu        sync.Mutex
	cursor    int
	mistakes  int
	done      bool
	stop      context.CancelFunc
	startedAt time.Time
	endedAt   time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithRenderer sets the feedback sink.
func WithRenderer(r Renderer) Option {
	return func(s *Session) {
		s.render = r
	}
}

// WithTimeLimit overrides the time budget.
func WithTimeLimit(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.limit = d
		}
	}
}

// New creates a session for the given reference text.
func New(text string, opts ...Option) *Session {
	s := &Session{
		text:   []rune(text),
		limit:  model.DefaultTimeLimit,
		clock:  SystemClock,
		render: NopRenderer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text returns the reference text.
func (s *Session) Text() string {
	return string(s.text)
}

// TimeLimit returns the time budget.
func (s *Session) TimeLimit() time.Duration {
	return s.limit
}

// Cursor returns the number of characters typed correctly so far.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Done reports whether the session has finished.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Keystroke applies one typed character. A match advances the cursor; any
// other character re-renders the expected one and leaves the cursor alone.
// It reports whether the character was accepted.
func (s *Session) Keystroke(r rune) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	accepted := false
	if s.cursor < len(s.text) {
		pos := s.cursor
		expected := s.text[pos]
		if r == expected {
			s.render.Accepted(pos, r)
			s.cursor++
			accepted = true
		} else {
			s.mistakes++
			s.render.Mismatch(pos, expected)
		}
	}
	if s.cursor == len(s.text) {
		s.finishLocked()
	}
	return accepted
}

// Run starts both loops and blocks until they have stopped, then scores the
// session. The first error from either loop is returned alongside the
// partial result; a cancelled ctx aborts the run.
func (s *Session) Run(ctx context.Context, keys KeySource) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("session already finished")
	}
	s.stop = stop
	s.startedAt = s.clock.Now()
	if len(s.text) == 0 {
		s.finishLocked()
	}
	s.mu.Unlock()

	g.Go(func() error {
		return s.inputLoop(loopCtx, keys)
	})
	g.Go(func() error {
		return s.timerLoop(loopCtx)
	})
	err := g.Wait()

	res := s.result()
	if err != nil {
		return res, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return res, cerr
	}
	return res, nil
}

func (s *Session) inputLoop(ctx context.Context, keys KeySource) error {
	for !s.Done() && s.elapsed() < s.limit {
		r, err := keys.ReadKey(ctx)
		if err != nil {
			if s.Done() {
				return nil
			}
			return fmt.Errorf("failed to read key: %w", err)
		}
		s.Keystroke(r)
	}
	return nil
}

func (s *Session) timerLoop(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return nil
		}
		elapsed := s.clock.Now().Sub(s.startedAt)
		if elapsed >= s.limit {
			s.finishLocked()
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		s.render.Elapsed(elapsed)
		wait := Tick
		if remaining := s.limit - elapsed; remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(wait):
		}
	}
}

// finishLocked marks the session done and wakes both loops. s.mu must be held.
func (s *Session) finishLocked() {
	if s.done {
		return
	}
	s.done = true
	s.endedAt = s.clock.Now()
	if s.stop != nil {
		s.stop()
	}
}

func (s *Session) elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Sub(s.startedAt)
}

func (s *Session) result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.endedAt
	if !s.done {
		end = s.clock.Now()
	}
	elapsed := end.Sub(s.startedAt)
	return Result{
		StartedAt: s.startedAt,
		EndedAt:   end,
		Elapsed:   elapsed,
		Typed:     s.cursor,
		Mistakes:  s.mistakes,
		CPM:       stats.CharactersPerMinute(s.cursor, elapsed),
		Completed: s.cursor == len(s.text),
	}
}

// NopRenderer discards all feedback.
type NopRenderer struct{}

// Accepted implements Renderer.
func (NopRenderer) Accepted(int, rune) {}

// Mismatch implements Renderer.
func (NopRenderer) Mismatch(int, rune) {}

// Elapsed implements Renderer.
func (NopRenderer) Elapsed(time.Duration) {}
