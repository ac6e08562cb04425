package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// column is one column of a plain-text report. Numeric columns align right.
type column struct {
	title   string
	numeric bool
}

// textTable lays out report rows in aligned columns separated by one space.
// Widths are measured in terminal cells so Cyrillic and wide names line up.
type textTable struct {
	cols   []column
	rows   [][]string
	widths []int
}

func newTextTable(cols ...column) *textTable {
	t := &textTable{cols: cols, widths: make([]int, len(cols))}
	for i, c := range cols {
		t.widths[i] = runewidth.StringWidth(c.title)
	}
	return t
}

// addRow appends a row. Missing cells render empty and extra cells are dropped.
func (t *textTable) addRow(cells ...string) {
	row := make([]string, len(t.cols))
	copy(row, cells)
	for i, cell := range row {
		if w := runewidth.StringWidth(cell); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// lines returns the header followed by every row.
func (t *textTable) lines() []string {
	if len(t.cols) == 0 {
		return nil
	}
	header := make([]string, len(t.cols))
	for i, c := range t.cols {
		header[i] = c.title
	}
	out := make([]string, 0, len(t.rows)+1)
	out = append(out, t.line(header))
	for _, row := range t.rows {
		out = append(out, t.line(row))
	}
	return out
}

func (t *textTable) line(cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(' ')
		}
		pad := t.widths[i] - runewidth.StringWidth(cell)
		if pad <= 0 {
			b.WriteString(cell)
			continue
		}
		if t.cols[i].numeric {
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(cell)
		} else {
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	return b.String()
}
