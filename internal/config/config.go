package config

// FileConfig represents the TOML configuration file. Pointer fields stay nil
// when a value is absent so that command-line defaults apply.
type FileConfig struct {
	Test        TestConfig        `koanf:"test"`
	Leaderboard LeaderboardConfig `koanf:"leaderboard"`
	Log         LogConfig         `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// TestConfig maps test-related settings.
type TestConfig struct {
	// TimeLimit is the test budget in seconds.
	TimeLimit *int `koanf:"time_limit"`
}

// LeaderboardConfig maps persistence settings.
type LeaderboardConfig struct {
	Path    *string `koanf:"path"`
	History *bool   `koanf:"history"`
	DBPath  *string `koanf:"db_path"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `koanf:"level"`
	File  *string `koanf:"file"`
}

// MetricsConfig maps metrics export settings.
type MetricsConfig struct {
	File *string `koanf:"file"`
}
