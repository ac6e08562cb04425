package stats

import (
	"fmt"
	"io"

	"github.com/verte-zerg/sprint/internal/model"
)

const highlightColor = "\x1b[34m"

// RenderLeaderboard prints ranked records as an aligned table. Rows whose
// name equals highlight are coloured when the writer is a terminal.
func RenderLeaderboard(w io.Writer, ranked []model.ScoreRecord, highlight string, top int) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(w, "Leaderboard is empty.")
		return err
	}
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	tbl := newTextTable(
		column{title: "#", numeric: true},
		column{title: "Name"},
		column{title: "Chars/min", numeric: true},
	)
	for i, rec := range ranked {
		tbl.addRow(fmt.Sprintf("%d", i+1), rec.Name, fmt.Sprintf("%d", rec.Score))
	}
	lines := tbl.lines()
	useColor := highlight != "" && shouldUseColor(w, false)
	for i, line := range lines {
		if useColor && i > 0 && ranked[i-1].Name == highlight {
			line = highlightColor + line + colorReset
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
