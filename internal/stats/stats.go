// Package stats contains score calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/sprint/internal/model"
)

const sparkChars = " .:-=+*#%@"

// CharactersPerMinute scores a run as floor(typed / elapsed minutes).
// A non-positive elapsed time scores 0.
func CharactersPerMinute(typed int, elapsed time.Duration) int {
	if elapsed <= 0 || typed <= 0 {
		return 0
	}
	return int(int64(typed) * int64(time.Minute) / int64(elapsed))
}

// SessionMetrics computes WPM and accuracy for a run.
func SessionMetrics(correct, mistakes int, elapsed time.Duration) (wpm, accuracy float64) {
	den := float64(correct + mistakes)
	if den > 0 {
		accuracy = float64(correct) / den
	}
	if elapsed <= 0 {
		return 0, accuracy
	}
	wpm = (float64(correct) / 5.0) / elapsed.Minutes()
	return wpm, accuracy
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderHistory prints the run log followed by a CPM trend line.
func RenderHistory(w io.Writer, runs []model.RunStats, window int) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	tbl := newTextTable(
		column{title: "Ended"},
		column{title: "Name"},
		column{title: "CPM", numeric: true},
		column{title: "Typed", numeric: true},
		column{title: "Mistakes", numeric: true},
		column{title: "Time", numeric: true},
		column{title: "Finished"},
	)
	cpms := make([]float64, 0, len(runs))
	for _, r := range runs {
		finished := "timeout"
		if r.Completed {
			finished = "yes"
		}
		tbl.addRow(
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Name,
			fmt.Sprintf("%d", r.CPM),
			fmt.Sprintf("%d", r.Typed),
			fmt.Sprintf("%d", r.Mistakes),
			fmt.Sprintf("%.1fs", r.Duration.Seconds()),
			finished,
		)
		cpms = append(cpms, float64(r.CPM))
	}
	for _, line := range tbl.lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	trend := MovingAverage(cpms, window)
	if width := terminalWidth() - len("Trend: "); len(trend) > width && width > 0 {
		trend = trend[len(trend)-width:]
	}
	if _, err := fmt.Fprintf(w, "\nTrend: %s\n", Sparkline(trend)); err != nil {
		return err
	}
	return nil
}
