package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/sprint/internal/app"
	"github.com/verte-zerg/sprint/internal/model"
	"github.com/verte-zerg/sprint/internal/session"
)

type fakeRunner struct {
	text  string
	limit time.Duration
}

func (f fakeRunner) Text() string             { return f.text }
func (f fakeRunner) TimeLimit() time.Duration { return f.limit }

func (f fakeRunner) RunTest(ctx context.Context, name string, keys session.KeySource, r session.Renderer) (app.Outcome, error) {
	return app.Outcome{Name: name}, nil
}

func newTestModel(name string) *Model {
	return NewModel(context.Background(), fakeRunner{text: "abcd", limit: 30 * time.Second}, name)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNamePromptRejectsEmptyName(t *testing.T) {
	m := newTestModel("")
	if m.phase != phaseName {
		t.Fatalf("expected name prompt, got phase %d", m.phase)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.phase != phaseName || m.nameErr == "" {
		t.Fatalf("expected an error for an empty name")
	}

	m.Update(keyRunes("Al"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.phase != phaseReady {
		t.Fatalf("expected ready phase, got %d", m.phase)
	}
	if m.name != "Al" {
		t.Fatalf("expected name Al, got %q", m.name)
	}
}

func TestNameFlagSkipsPrompt(t *testing.T) {
	m := newTestModel("  Bo ")
	if m.phase != phaseReady || m.name != "Bo" {
		t.Fatalf("expected ready phase for Bo, got %d %q", m.phase, m.name)
	}
	if !strings.Contains(m.View(), "30 seconds") {
		t.Fatalf("expected the intro to mention the limit: %s", m.View())
	}
}

func TestTypingKeysReachSession(t *testing.T) {
	m := newTestModel("Al")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.phase != phaseTyping || cmd == nil {
		t.Fatalf("expected typing phase with a run command")
	}
	m.Update(keyRunes("ab"))
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var got []rune
	for i := 0; i < 3; i++ {
		r, err := m.keys.ReadKey(ctx)
		if err != nil {
			t.Fatalf("read key %d: %v", i, err)
		}
		got = append(got, r)
	}
	if string(got) != "ab " {
		t.Fatalf("expected keys %q, got %q", "ab ", string(got))
	}
}

func TestFinishShowsResults(t *testing.T) {
	m := newTestModel("Al")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	outcome := app.Outcome{
		Name: "Al",
		Result: session.Result{
			Typed:     4,
			Elapsed:   2 * time.Second,
			CPM:       120,
			Completed: true,
		},
		Leaderboard: []model.ScoreRecord{{Name: "Bo", Score: 200}, {Name: "Al", Score: 120}},
	}
	_, cmd := m.Update(finishedMsg{outcome: outcome})
	if cmd != nil {
		t.Fatalf("expected to stay on the results screen")
	}
	if m.phase != phaseResults {
		t.Fatalf("expected results phase, got %d", m.phase)
	}
	if m.board.Cursor() != 1 {
		t.Fatalf("expected the current user row selected, got %d", m.board.Cursor())
	}
	view := m.View()
	for _, want := range []string{"Passage complete.", "120 chars/min", "Bo", "200"} {
		if !strings.Contains(view, want) {
			t.Fatalf("results missing %q:\n%s", want, view)
		}
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Fatalf("expected Enter to quit")
	}
}

func TestFinishWithError(t *testing.T) {
	m := newTestModel("Al")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	err := fmt.Errorf("%w: %w", app.ErrAborted, context.Canceled)
	m.Update(finishedMsg{err: err})
	if !errors.Is(m.Err(), app.ErrAborted) || !m.Aborted() {
		t.Fatalf("expected aborted error, got %v", m.Err())
	}
}

func TestCtrlCAbortsTyping(t *testing.T) {
	m := newTestModel("Al")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !m.Aborted() {
		t.Fatalf("expected ctrl+c to abort and quit")
	}
	if m.ctx.Err() == nil {
		t.Fatalf("expected the run context to be cancelled")
	}
}

func TestRenderFooterFormats(t *testing.T) {
	m := newTestModel("Al")
	out := m.renderFooter(liveSnapshot{cursor: 2, mismatchAt: -1, elapsed: 12 * time.Second})
	for _, want := range []string{"Elapsed 12s / 30s", "Progress 50%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("footer missing %q: %s", want, out)
		}
	}
}

func TestLiveViewTracksSession(t *testing.T) {
	v := newLiveView()
	v.Mismatch(0, 'a')
	if snap := v.snapshot(); snap.mismatchAt != 0 || snap.cursor != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	v.Accepted(0, 'a')
	v.Elapsed(3 * time.Second)
	snap := v.snapshot()
	if snap.cursor != 1 || snap.mismatchAt != -1 || snap.elapsed != 3*time.Second {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestKeyQueueDropsWhenFull(t *testing.T) {
	q := newKeyQueue(1)
	if !q.push('a') {
		t.Fatalf("expected first push to succeed")
	}
	if q.push('b') {
		t.Fatalf("expected push into a full queue to fail")
	}
	ctx, cancel := context.WithCancel(context.Background())
	if r, err := q.ReadKey(ctx); err != nil || r != 'a' {
		t.Fatalf("expected a, got %q %v", r, err)
	}
	cancel()
	if _, err := q.ReadKey(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
