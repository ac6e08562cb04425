// Package main provides the CLI entrypoint for sprint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/sprint/internal/app"
	"github.com/verte-zerg/sprint/internal/config"
	"github.com/verte-zerg/sprint/internal/leaderboard"
	"github.com/verte-zerg/sprint/internal/logger"
	"github.com/verte-zerg/sprint/internal/metrics"
	"github.com/verte-zerg/sprint/internal/model"
	"github.com/verte-zerg/sprint/internal/stats"
	"github.com/verte-zerg/sprint/internal/store"
	"github.com/verte-zerg/sprint/internal/tui"
)

const (
	defaultLogLevel      = "warn"
	defaultHistoryWindow = 5
)

var (
	testName        string
	testTimeLimit   int
	leaderboardPath string
	noHistory       bool
	metricsFile     string
	logLevel        string
	logFile         string

	boardTop       int
	boardHighlight string

	historyName   string
	historyLast   int
	historyWindow int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sprint",
		Short:         "Timed typing speed test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTestCmd,
	}

	rootCmd.Flags().StringVar(&testName, "name", "", "player name (skips the prompt)")
	rootCmd.Flags().IntVar(&testTimeLimit, "time-limit", int(model.DefaultTimeLimit/time.Second), "test duration in seconds")
	rootCmd.PersistentFlags().StringVar(&leaderboardPath, "leaderboard", config.DefaultLeaderboardPath(), "leaderboard file (.toml or .json)")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run history")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file after each run")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyIntConfig(cmd, "time-limit", &testTimeLimit, fileCfg.Test.TimeLimit)
	applyBoolConfig(cmd, "no-history", &noHistory, negate(fileCfg.Leaderboard.History))
	applyStringConfig(cmd, "metrics-file", &metricsFile, fileCfg.Metrics.File)

	cfg := model.Config{
		Name:            strings.TrimSpace(testName),
		TimeLimit:       time.Duration(testTimeLimit) * time.Second,
		LeaderboardPath: leaderboardPath,
		History:         !noHistory,
		DBPath:          config.DefaultDBPath(),
		MetricsFile:     metricsFile,
	}
	if fileCfg.Leaderboard.DBPath != nil {
		cfg.DBPath = *fileCfg.Leaderboard.DBPath
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	closeLog, err := setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.Named("cli")
	ctx := context.Background()

	board, err := leaderboard.Open(cfg.LeaderboardPath)
	if err != nil {
		return err
	}
	opts := []app.Option{app.WithTimeLimit(cfg.TimeLimit)}
	if cfg.History {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				log.Error(ctx, "failed to close db", logger.Error(cerr))
			}
		}()
		opts = append(opts, app.WithHistory(st))
	}
	if cfg.MetricsFile != "" {
		mgr := metrics.NewManager()
		if err := mgr.Restore(cfg.MetricsFile); err != nil {
			log.Warn(ctx, "starting metrics from zero", logger.String("file", cfg.MetricsFile), logger.Error(err))
		}
		opts = append(opts, app.WithMetrics(mgr, cfg.MetricsFile))
	}
	runner := app.New(board, opts...)

	// A broken leaderboard would only surface after the test; fail before it.
	if _, err := runner.Leaderboard(); err != nil {
		return err
	}

	m := tui.NewModel(ctx, runner, cfg.Name)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if err := m.Err(); err != nil {
		return err
	}
	if m.Aborted() {
		return app.ErrAborted
	}
	outcome := m.Outcome()
	if outcome.Name == "" {
		return nil
	}
	return printOutcome(cmd.OutOrStdout(), outcome)
}

func printOutcome(w io.Writer, outcome app.Outcome) error {
	res := outcome.Result
	if _, err := fmt.Fprintf(w, "%s: %d chars/min (%d chars in %.1fs)\n\n", outcome.Name, res.CPM, res.Typed, res.Elapsed.Seconds()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return stats.RenderLeaderboard(w, outcome.Leaderboard, outcome.Name, 0)
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().IntVar(&boardTop, "top", 0, "show only the first N entries")
	cmd.Flags().StringVar(&boardHighlight, "highlight", "", "highlight the entry with this name")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	if boardTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}
	board, err := leaderboard.Open(leaderboardPath)
	if err != nil {
		return err
	}
	records, err := board.Load()
	if err != nil {
		return err
	}
	return stats.RenderLeaderboard(cmd.OutOrStdout(), leaderboard.Ranked(records), boardHighlight, boardTop)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyName, "name", "", "only runs by this player")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&historyWindow, "window", defaultHistoryWindow, "moving average window for the trend")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}
	dbPath := config.DefaultDBPath()
	if fileCfg.Leaderboard.DBPath != nil {
		dbPath = *fileCfg.Leaderboard.DBPath
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			// Best-effort close; the listing already succeeded or failed.
			_ = cerr
		}
	}()

	runs, err := st.ListRuns(cmd.Context(), model.HistoryFilter{Name: historyName, Last: historyLast})
	if err != nil {
		return err
	}
	return stats.RenderHistory(cmd.OutOrStdout(), runs, historyWindow)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// loadFileConfig reads the config file and applies the settings shared by
// every command.
func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "leaderboard", &leaderboardPath, fileCfg.Leaderboard.Path)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	return fileCfg, nil
}

// setupLogger points the global logger at the log file, or stderr when none
// is configured. The returned func closes the file.
func setupLogger() (func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() {
			_ = f.Close()
		}
	}
	if err := logger.Init(w, logLevel); err != nil {
		closeFn()
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	return closeFn, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func negate(v *bool) *bool {
	if v == nil {
		return nil
	}
	n := !*v
	return &n
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# sprint configuration
# Uncomment a value to enable it. CLI flags override config values.
# Environment variables override the file, e.g. SPRINT_TEST_TIME_LIMIT=60.

[test]
# time_limit = %d         # Test duration in seconds

[leaderboard]
# path = %q
# history = true          # Record every run in the history database
# db_path = %q

[log]
# level = %q
# file = ""               # Log file; stderr when empty

[metrics]
# file = ""               # Prometheus textfile written after each run
`,
		int(model.DefaultTimeLimit/time.Second),
		config.DefaultLeaderboardPath(),
		config.DefaultDBPath(),
		defaultLogLevel,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.TimeLimit <= 0 {
		return fmt.Errorf("--time-limit must be > 0")
	}
	if strings.TrimSpace(cfg.LeaderboardPath) == "" {
		return fmt.Errorf("--leaderboard must not be empty")
	}
	if cfg.History && strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("leaderboard.db_path must not be empty")
	}
	return nil
}
