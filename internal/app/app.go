// Package app wires a typing session to the leaderboard, run history and
// metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/sprint/internal/leaderboard"
	"github.com/verte-zerg/sprint/internal/logger"
	"github.com/verte-zerg/sprint/internal/metrics"
	"github.com/verte-zerg/sprint/internal/model"
	"github.com/verte-zerg/sprint/internal/session"
	"github.com/verte-zerg/sprint/internal/store"
)

// Passage is the reference text every test uses.
const Passage = "страна как знать пойти дом к должный раз пойти мой видеть чем лишь во ты про перед каждый выйти здесь быть нога бывать себя там"

// ErrAborted marks a test that ended without a score.
var ErrAborted = errors.New("typing test aborted")

// Outcome is the result of a scored test.
type Outcome struct {
	Name        string
	Result      session.Result
	Leaderboard []model.ScoreRecord
}

// App runs typing tests and records their scores.
type App struct {
	board       *leaderboard.Store
	history     *store.Store
	metrics     *metrics.Manager
	metricsFile string
	clock       session.Clock
	limit       time.Duration
	text        string
	log         logger.Logger
}

// Option configures an App.
type Option func(*App)

// WithHistory records every scored run in st.
func WithHistory(st *store.Store) Option {
	return func(a *App) {
		a.history = st
	}
}

// WithMetrics records run metrics in m and, when file is set, exports them
// there after each run.
func WithMetrics(m *metrics.Manager, file string) Option {
	return func(a *App) {
		a.metrics = m
		a.metricsFile = file
	}
}

// WithClock overrides the session clock.
func WithClock(c session.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithTimeLimit overrides the test budget.
func WithTimeLimit(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.limit = d
		}
	}
}

// New creates an App persisting scores to board.
func New(board *leaderboard.Store, opts ...Option) *App {
	a := &App{
		board: board,
		clock: session.SystemClock,
		limit: model.DefaultTimeLimit,
		text:  Passage,
		log:   logger.Named("app"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Text returns the reference passage.
func (a *App) Text() string {
	return a.text
}

// TimeLimit returns the test budget.
func (a *App) TimeLimit() time.Duration {
	return a.limit
}

// Leaderboard loads the stored scores, highest first.
func (a *App) Leaderboard() ([]model.ScoreRecord, error) {
	records, err := a.board.Load()
	if err != nil {
		return nil, err
	}
	return leaderboard.Ranked(records), nil
}

// RunTest runs one test for name, reading keys from keys and reporting
// progress to r. The score is stored only when the test ends by completion
// or timeout.
func (a *App) RunTest(ctx context.Context, name string, keys session.KeySource, r session.Renderer) (Outcome, error) {
	if r == nil {
		r = session.NopRenderer{}
	}
	s := session.New(a.text,
		session.WithClock(a.clock),
		session.WithTimeLimit(a.limit),
		session.WithRenderer(r),
	)
	a.log.Debug(ctx, "test started", logger.String("name", name), logger.Duration("limit", a.limit))
	res, err := s.Run(ctx, keys)
	if err != nil {
		a.log.Warn(ctx, "test aborted", logger.String("name", name), logger.Error(err))
		a.observe(ctx, metrics.OutcomeAborted, res)
		return Outcome{Name: name, Result: res}, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return a.Record(ctx, name, res)
}

// Record stores a finished result: leaderboard first, then run history.
func (a *App) Record(ctx context.Context, name string, res session.Result) (Outcome, error) {
	records, err := a.board.Upsert(name, res.CPM)
	if err != nil {
		return Outcome{Name: name, Result: res}, fmt.Errorf("failed to update leaderboard: %w", err)
	}
	if a.metrics != nil {
		a.metrics.IncLeaderboardUpserts()
	}
	a.log.Info(ctx, "score recorded",
		logger.String("name", name),
		logger.Int("cpm", res.CPM),
		logger.Int("typed", res.Typed),
		logger.Duration("elapsed", res.Elapsed),
		logger.Bool("completed", res.Completed),
	)

	if a.history != nil {
		run := model.RunStats{
			Name:      name,
			StartedAt: res.StartedAt,
			EndedAt:   res.EndedAt,
			Typed:     res.Typed,
			Mistakes:  res.Mistakes,
			Duration:  res.Elapsed,
			CPM:       res.CPM,
			Completed: res.Completed,
		}
		if _, err := a.history.InsertRun(ctx, run); err != nil {
			a.log.Error(ctx, "failed to save run history", logger.Error(err))
		}
	}

	outcome := metrics.OutcomeTimeout
	if res.Completed {
		outcome = metrics.OutcomeCompleted
	}
	a.observe(ctx, outcome, res)

	return Outcome{
		Name:        name,
		Result:      res,
		Leaderboard: leaderboard.Ranked(records),
	}, nil
}

func (a *App) observe(ctx context.Context, outcome string, res session.Result) {
	if a.metrics == nil {
		return
	}
	a.metrics.ObserveRun(outcome, res.Typed, res.Mistakes, res.CPM, res.Elapsed.Seconds())
	if a.metricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		a.log.Error(ctx, "failed to export metrics", logger.Error(err))
	}
}
