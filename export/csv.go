// Package export renders tables in the promotores CSV download format:
// every field double-quoted, embedded quotes doubled, lines joined by "\n".
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNothingToExport is returned when a table has no data rows.
var ErrNothingToExport = errors.New("export: nothing to export")

// FilePrefix starts every exported file name.
const FilePrefix = "promotores_ccb_"

// Quote wraps a field in double quotes, doubling embedded quotes.
func Quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Line renders one CSV line without a trailing newline.
func Line(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = Quote(f)
	}
	return strings.Join(quoted, ",")
}

// Table renders a header line followed by one line per row. Cell text is
// trimmed. When blankLast is set the last column of every data row is
// emitted as an empty field whatever it holds.
func Table(header []string, rows [][]string, blankLast bool) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, HeaderLine(header))
	for i, row := range rows {
		if len(row) == 0 {
			return nil, fmt.Errorf("export: row %d is empty", i)
		}
		lines = append(lines, DataLine(row, blankLast))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// HeaderLine renders the trimmed header line.
func HeaderLine(header []string) string {
	return Line(trimAll(header))
}

// DataLine renders one trimmed data row, blanking its last cell when
// blankLast is set.
func DataLine(row []string, blankLast bool) string {
	cells := trimAll(row)
	if blankLast && len(cells) > 0 {
		cells[len(cells)-1] = ""
	}
	return Line(cells)
}

// FileName returns promotores_ccb_<YYYY-MM-DD>.csv for the UTC date of now.
func FileName(now time.Time) string {
	return FilePrefix + now.UTC().Format("2006-01-02") + ".csv"
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
