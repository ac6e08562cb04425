// Package model defines shared data structures.
package model

import "time"

// DefaultTimeLimit is the time budget of a single test.
const DefaultTimeLimit = 30 * time.Second

// Config defines test settings.
type Config struct {
	Name            string
	TimeLimit       time.Duration
	LeaderboardPath string
	History         bool
	DBPath          string
	MetricsFile     string
}

// ScoreRecord is a leaderboard entry. Name is the unique key.
type ScoreRecord struct {
	Name  string `json:"name" toml:"name"`
	Score int    `json:"score" toml:"score"`
}

// RunStats captures a finished typing test.
type RunStats struct {
	ID        string
	Name      string
	StartedAt time.Time
	EndedAt   time.Time
	Typed     int
	Mistakes  int
	Duration  time.Duration
	CPM       int
	Completed bool
}

// HistoryFilter narrows the run history listing.
type HistoryFilter struct {
	Name string
	Last int
}
