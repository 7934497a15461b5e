package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/torosent/crankbench/internal/measure"
)

const columnSeparator = " | "

// Tabulate renders rows as an aligned text table. Columns are the union of
// all keys in first-seen order. Numbers and booleans are right-aligned, all
// other cells left-aligned, and a row missing a column gets a blank cell.
func Tabulate(rows []*measure.Row) string {
	columns := measure.Columns(rows)
	if len(columns) == 0 {
		return ""
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = utf8.RuneCountInString(col)
	}
	for _, row := range rows {
		for i, col := range columns {
			if v, ok := row.Get(col); ok {
				widths[i] = max(widths[i], utf8.RuneCountInString(measure.Format(v)))
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = pad(col, widths[i], false)
	}
	writeLine(&b, cells)
	for _, row := range rows {
		for i, col := range columns {
			v, ok := row.Get(col)
			if !ok {
				cells[i] = pad("", widths[i], true)
				continue
			}
			cells[i] = pad(measure.Format(v), widths[i], v.RightAligned())
		}
		writeLine(&b, cells)
	}
	return b.String()
}

// PrintTable writes the table of rows to w.
func PrintTable(w io.Writer, rows []*measure.Row) error {
	_, err := io.WriteString(w, Tabulate(rows))
	return err
}

func pad(s string, width int, right bool) string {
	if right {
		return fmt.Sprintf("%*s", width, s)
	}
	return fmt.Sprintf("%-*s", width, s)
}

func writeLine(b *strings.Builder, cells []string) {
	b.WriteString(strings.Join(cells, columnSeparator))
	b.WriteByte('\n')
}
