// Package catalog loads the promotores data file and answers OP searches.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/parser"
	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// CSVSheet is the sheet name reported for CSV data files.
const CSVSheet = "<csv>"

// opSampleRows is how many values are inspected when guessing the OP column.
const opSampleRows = 10

var (
	// ErrFileNotFound is wrapped when the data file does not exist.
	ErrFileNotFound = errors.New("catalog: data file not found")
	// ErrNoSheets is wrapped when a workbook has no sheets.
	ErrNoSheets = errors.New("catalog: workbook has no sheets")
	// ErrNoOPColumn is wrapped when no column can serve as the OP code.
	ErrNoOPColumn = errors.New("catalog: no OP column")
)

// LoadError carries the user-facing reason a data file could not be loaded.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Dataset is one successful load of the data file.
type Dataset struct {
	Records  []models.Record
	Sheets   []string
	Sheet    string
	Columns  []string
	LoadedAt time.Time

	byOP map[string][]int
}

// Lookup returns the records whose OP equals one of ops, in file order.
func (d *Dataset) Lookup(ops ...string) []models.Record {
	if d == nil {
		return nil
	}
	var idx []int
	for _, op := range ops {
		idx = append(idx, d.byOP[op]...)
	}
	if len(ops) > 1 {
		slices.Sort(idx)
		idx = slices.Compact(idx)
	}
	out := make([]models.Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, d.Records[i])
	}
	return out
}

// LoadFile reads a CSV or XLSX data file. headerRow is the zero-based row
// holding the column titles; rows above it are ignored. For workbooks the
// requested sheet is used when present, otherwise the first one. The
// returned sheet list is filled even when the load fails afterwards.
func LoadFile(path, sheet string, headerRow int) (*Dataset, []string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, &LoadError{
				Message: fmt.Sprintf("No se encontró el archivo %s", path),
				Err:     fmt.Errorf("%w: %s", ErrFileNotFound, path),
			}
		}
		return nil, nil, &LoadError{Message: err.Error(), Err: err}
	}

	var (
		rows   [][]string
		sheets []string
		used   string
		err    error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		sheets = []string{CSVSheet}
		used = CSVSheet
		rows, err = readCSVRows(path)
	} else {
		rows, sheets, used, err = readWorkbookRows(path, sheet)
	}
	if err != nil {
		return nil, sheets, asLoadError(err)
	}

	ds, err := buildDataset(rows, headerRow)
	if err != nil {
		return nil, sheets, asLoadError(err)
	}
	ds.Sheets = sheets
	ds.Sheet = used
	return ds, sheets, nil
}

func asLoadError(err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return &LoadError{Message: err.Error(), Err: err}
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readWorkbookRows(path, sheet string) ([][]string, []string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, sheets, "", &LoadError{Message: "El archivo no tiene hojas.", Err: ErrNoSheets}
	}

	used := sheets[0]
	found := false
	for _, s := range sheets {
		if s == sheet {
			used, found = s, true
			break
		}
	}
	if sheet != "" && !found {
		slog.Warn("requested sheet not found, using first sheet",
			slog.String("requested", sheet),
			slog.String("using", used),
		)
	}

	rows, err := f.GetRows(used)
	if err != nil {
		return nil, sheets, used, fmt.Errorf("read sheet %q: %w", used, err)
	}
	return rows, sheets, used, nil
}

func buildDataset(rows [][]string, headerRow int) (*Dataset, error) {
	if headerRow >= len(rows) {
		return nil, fmt.Errorf("header row %d out of range (%d rows)", headerRow, len(rows))
	}

	// Drop blank-titled columns and remember where the others came from.
	var (
		titles  []string
		sources []int
	)
	for i, h := range rows[headerRow] {
		clean := parser.CleanHeader(h)
		if clean == "" {
			continue
		}
		titles = append(titles, clean)
		sources = append(sources, i)
	}

	data := make([][]string, 0, len(rows)-headerRow-1)
	for _, raw := range rows[headerRow+1:] {
		row := make([]string, len(sources))
		for j, src := range sources {
			if src < len(raw) {
				row[j] = raw[src]
			}
		}
		data = append(data, row)
	}

	slog.Info("catalog columns", slog.Any("columns", titles))

	fields := mapFields(titles)
	if !contains(fields, "op") {
		if col := guessOPColumn(data, len(titles)); col >= 0 {
			fields[col] = "op"
			slog.Info("using column as OP", slog.String("column", titles[col]))
		}
	}
	if !contains(fields, "op") {
		return nil, &LoadError{
			Message: fmt.Sprintf("No se encontró columna OP. Columnas disponibles: %s", formatColumns(titles)),
			Err:     ErrNoOPColumn,
		}
	}

	header := make([]string, len(fields))
	for i, f := range fields {
		if f == "" {
			header[i] = fmt.Sprintf("_col%d", i)
			continue
		}
		header[i] = f
	}

	dec, err := csvutil.NewDecoder(&sliceReader{rows: data}, header...)
	if err != nil {
		return nil, fmt.Errorf("create record decoder: %w", err)
	}

	ds := &Dataset{
		Columns:  titles,
		LoadedAt: time.Now(),
		byOP:     make(map[string][]int),
	}
	for {
		var rec models.Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode row %d: %w", len(ds.Records)+headerRow+2, err)
		}
		rec.OP = parser.NormalizeOP(rec.OP)
		if err := parser.ValidateRecord(&rec); err != nil {
			continue
		}
		ds.byOP[rec.OP] = append(ds.byOP[rec.OP], len(ds.Records))
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// mapFields assigns each title its canonical field. A field already taken
// by an earlier column is left unassigned.
func mapFields(titles []string) []string {
	fields := make([]string, len(titles))
	taken := make(map[string]bool)
	for i, t := range titles {
		f := parser.MapColumn(t)
		if f == "" || taken[f] {
			continue
		}
		taken[f] = true
		fields[i] = f
	}
	return fields
}

func guessOPColumn(data [][]string, width int) int {
	limit := min(opSampleRows, len(data))
	for col := 0; col < width; col++ {
		for _, row := range data[:limit] {
			if strings.Contains(strings.ToUpper(row[col]), "EX") {
				return col
			}
		}
	}
	return -1
}

func contains(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func formatColumns(titles []string) string {
	quoted := make([]string, len(titles))
	for i, t := range titles {
		quoted[i] = "'" + t + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// sliceReader feeds pre-read rows to csvutil.
type sliceReader struct {
	rows [][]string
	pos  int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}
