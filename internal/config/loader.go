package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides, e.g. SPRINT_TEST_TIME_LIMIT.
const EnvPrefix = "SPRINT_"

// LoadConfig reads the TOML config at path and layers environment overrides
// on top. A missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("%w: config path is empty", ErrLoadConfig)
	}
	k := koanf.New(".")

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return FileConfig{}, fmt.Errorf("%w: failed to stat config: %v", ErrLoadConfig, err)
		}
	} else if err := k.Load(file.Provider(path), tomlParser{}); err != nil {
		return FileConfig{}, fmt.Errorf("%w: failed to decode config: %v", ErrLoadConfig, err)
	}

	// SPRINT_LEADERBOARD_DB_PATH -> leaderboard.db_path
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return FileConfig{}, fmt.Errorf("%w: failed to read environment: %v", ErrLoadConfig, err)
	}

	var cfg FileConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return FileConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Validate checks values that are present.
func (c FileConfig) Validate() error {
	if c.Test.TimeLimit != nil && *c.Test.TimeLimit <= 0 {
		return fmt.Errorf("%w: test.time_limit must be > 0", ErrInvalidConfig)
	}
	if c.Leaderboard.Path != nil && strings.TrimSpace(*c.Leaderboard.Path) == "" {
		return fmt.Errorf("%w: leaderboard.path must not be empty", ErrInvalidConfig)
	}
	return nil
}
