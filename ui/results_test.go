package ui

import (
	"testing"

	"github.com/aluiziolira/go-promotores/models"
	"github.com/google/go-cmp/cmp"
)

func TestRenderRecordsEmpty(t *testing.T) {
	table := RenderRecords(nil)

	if len(table.Rows) != 1 {
		t.Fatalf("rows = %d, want exactly one placeholder", len(table.Rows))
	}
	row := table.Rows[0]
	if !row.Placeholder || row.Span() != 8 {
		t.Fatalf("unexpected placeholder row: %+v (span %d)", row, row.Span())
	}
	if diff := cmp.Diff([]string{"No se encontraron resultados"}, row.Texts()); diff != "" {
		t.Fatalf("placeholder text mismatch (-want +got):\n%s", diff)
	}
	if table.HasData() {
		t.Fatalf("placeholder table must not count as data")
	}
}

func TestRenderRecordsRows(t *testing.T) {
	table := RenderRecords(twoRecords)

	if diff := cmp.Diff(Columns, table.Header); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	if len(table.Rows) != 2 || !table.HasData() {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}

	want := [][]string{
		{"EX0785", "CCB", "Ana", "Polo", "12", "M", "QR-1", "Abrir Copiar"},
		{"EX0785", "CCB", "Luis", `Chaqueta "Pro"`, "3", "L", "QR-2", ""},
	}
	if diff := cmp.Diff(want, table.Texts()); diff != "" {
		t.Fatalf("row texts mismatch (-want +got):\n%s", diff)
	}
	if table.Rows[0].Span() != 8 {
		t.Fatalf("data row span = %d, want 8", table.Rows[0].Span())
	}
}

func TestRenderRecordsActions(t *testing.T) {
	tests := []struct {
		name    string
		enlace  string
		actions []Action
	}{
		{
			name:   "link",
			enlace: " https://drive.test/x ",
			actions: []Action{
				{Kind: ActionOpen, Label: "Abrir", Target: "https://drive.test/x"},
				{Kind: ActionCopy, Label: "Copiar", Target: "https://drive.test/x"},
			},
		},
		{name: "blank", enlace: "   "},
		{name: "empty", enlace: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := RenderRecords([]models.Record{{OP: "EX1", Enlace: tt.enlace}})
			if diff := cmp.Diff(tt.actions, table.Rows[0].Actions); diff != "" {
				t.Fatalf("actions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderRecordsKeepsMarkupAsText(t *testing.T) {
	rec := models.Record{OP: "EX1", Nombre: `<img src=x onerror="alert(1)">`, Enlace: `javascript:alert('x')`}
	row := RenderRecords([]models.Record{rec}).Rows[0]

	if row.Cells[2] != rec.Nombre {
		t.Fatalf("cell text altered: %q", row.Cells[2])
	}
	if row.Link() != rec.Enlace {
		t.Fatalf("link altered: %q", row.Link())
	}
}
