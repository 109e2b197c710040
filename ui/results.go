package ui

import (
	"strings"

	"github.com/aluiziolira/go-promotores/models"
)

// Columns are the results table headers.
var Columns = []string{"OP", "Cliente", "Nombre", "Descripción", "Cantidad", "Talla", "QR", "Acciones"}

// ActionKind identifies a row action.
type ActionKind int

const (
	// ActionOpen opens the link in a new context.
	ActionOpen ActionKind = iota
	// ActionCopy copies the link to the clipboard.
	ActionCopy
)

// Action is a control in the actions cell.
type Action struct {
	Kind   ActionKind
	Label  string
	Target string
}

// Row is one rendered table row. Cells hold plain text; front ends must
// bind it as text, never as markup.
type Row struct {
	Cells       []string
	Actions     []Action
	Placeholder bool
}

// Span is the number of columns the row covers.
func (r Row) Span() int {
	if r.Placeholder {
		return len(Columns)
	}
	return len(r.Cells) + 1
}

// Texts returns the row as displayed: data cells followed by the
// actions cell text.
func (r Row) Texts() []string {
	if r.Placeholder {
		return append([]string(nil), r.Cells...)
	}
	labels := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		labels[i] = a.Label
	}
	return append(append([]string(nil), r.Cells...), strings.Join(labels, " "))
}

// Link returns the row's link, or "" when it has no actions.
func (r Row) Link() string {
	if len(r.Actions) == 0 {
		return ""
	}
	return r.Actions[0].Target
}

// Table is the rendered results.
type Table struct {
	Header []string
	Rows   []Row
}

// HasData reports whether the table holds record rows rather than
// nothing or the placeholder.
func (t Table) HasData() bool {
	if len(t.Rows) == 0 {
		return false
	}
	return !(len(t.Rows) == 1 && t.Rows[0].Placeholder)
}

// Texts returns every row's displayed texts.
func (t Table) Texts() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Texts()
	}
	return out
}

// RenderRecords builds the results table. No records renders a single
// placeholder row spanning every column.
func RenderRecords(records []models.Record) Table {
	t := Table{Header: append([]string(nil), Columns...)}
	if len(records) == 0 {
		t.Rows = []Row{{Cells: []string{NoResultsText}, Placeholder: true}}
		return t
	}

	t.Rows = make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{Cells: []string{
			rec.OP,
			rec.Cliente,
			rec.Nombre,
			rec.Descripcion,
			rec.Cantidad.String(),
			rec.Talla,
			rec.QR,
		}}
		if link := strings.TrimSpace(rec.Enlace); link != "" {
			row.Actions = []Action{
				{Kind: ActionOpen, Label: OpenActionLabel, Target: link},
				{Kind: ActionCopy, Label: CopyActionLabel, Target: link},
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
