package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

type stubSearcher struct {
	mu      sync.Mutex
	queries []string
	records []models.Record
}

func (s *stubSearcher) Search(_ context.Context, op string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, op)
	return s.records, nil
}

func (s *stubSearcher) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

type stubDecoder struct {
	value string
	err   error
}

func (d stubDecoder) Decode(context.Context, io.Reader) (string, error) {
	return d.value, d.err
}

type memClipboard struct {
	mu    sync.Mutex
	texts []string
}

func (c *memClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

type memDownloader struct {
	mu    sync.Mutex
	names []string
}

func (d *memDownloader) Save(name string, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = append(d.names, name)
	return nil
}

var records = []models.Record{
	{OP: "EX0785", Cliente: "CCB", Nombre: "Ana", Descripcion: "Polo", Cantidad: "12", Talla: "M", QR: "QR-1", Enlace: "https://drive.test/a"},
	{OP: "EX0785", Cliente: "CCB", Nombre: "Luis", Descripcion: "Chaqueta", Cantidad: "3", Talla: "L", QR: "QR-2", Enlace: "https://drive.test/b"},
}

type fixture struct {
	model    *Model
	app      *ui.App
	searcher *stubSearcher
	clip     *memClipboard
	download *memDownloader
	opened   []string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		searcher: &stubSearcher{records: records},
		clip:     &memClipboard{},
		download: &memDownloader{},
	}
	notes := NewNotifier()
	f.app = ui.NewApp(ui.Options{
		Searcher:   f.searcher,
		Decoder:    opts.Decoder,
		Clipboard:  f.clip,
		Downloader: f.download,
		OpenLink: func(url string) error {
			f.opened = append(f.opened, url)
			return nil
		},
		// Scan delays fire at once; alerts stay until replaced.
		Scheduler: ui.SchedulerFunc(func(_ time.Duration, fn func()) { fn() }),
		Now:       func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
		OnChange:  notes.Notify,
	})
	f.model = New(context.Background(), f.app, notes, opts)
	f.model.Init()
	f.settle()
	return f
}

// settle waits for background work and delivers the change notification.
func (f *fixture) settle() {
	f.app.Wait()
	f.model.Update(changedMsg{})
}

func (f *fixture) typeText(text string) {
	f.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func (f *fixture) press(k tea.KeyType) {
	f.model.Update(tea.KeyMsg{Type: k})
}

func TestInitialView(t *testing.T) {
	f := newFixture(t, Options{})

	view := f.model.View()
	for _, want := range []string{"Consulta de promotores CCB", "OP", "Cliente", ui.NoResultsText, "ctrl+q"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if len(f.model.table.Rows()) != 0 {
		t.Fatalf("expected no table rows before a search")
	}
}

func TestEnterSearches(t *testing.T) {
	f := newFixture(t, Options{})

	f.typeText("ex-0785")
	f.press(tea.KeyEnter)
	f.settle()

	if diff := cmp.Diff([]string{"ex-0785"}, f.searcher.seen()); diff != "" {
		t.Fatalf("queries mismatch (-want +got):\n%s", diff)
	}
	rows := f.model.table.Rows()
	if len(rows) != 2 || rows[0][2] != "Ana" || rows[1][7] != "Abrir Copiar" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if view := f.model.View(); !strings.Contains(view, "Se encontraron 2 resultado(s)") {
		t.Fatalf("missing found alert:\n%s", view)
	}
}

func TestEnterWithBlankInput(t *testing.T) {
	f := newFixture(t, Options{})

	f.typeText("   ")
	f.press(tea.KeyEnter)
	f.settle()

	if got := f.searcher.seen(); len(got) != 0 {
		t.Fatalf("blank input must not search, got %v", got)
	}
	if view := f.model.View(); !strings.Contains(view, ui.MsgEmptyQuery) {
		t.Fatalf("missing empty query alert:\n%s", view)
	}
}

func TestClearResetsScreen(t *testing.T) {
	f := newFixture(t, Options{})
	f.typeText("777")
	f.press(tea.KeyEnter)
	f.settle()

	f.press(tea.KeyCtrlL)
	f.settle()

	if f.model.input.Value() != "" || f.app.Input() != "" {
		t.Fatalf("input not cleared: %q / %q", f.model.input.Value(), f.app.Input())
	}
	if f.app.State().Alert.Visible {
		t.Fatalf("alert should be hidden after clear")
	}
	if len(f.model.table.Rows()) != 0 {
		t.Fatalf("table should be empty after clear")
	}
}

func TestDialogPresetScans(t *testing.T) {
	f := newFixture(t, Options{})

	f.press(tea.KeyCtrlQ)
	f.settle()
	view := f.model.View()
	for _, want := range []string{"Lector QR", "1: EX-0785", "2: EX-0777"} {
		if !strings.Contains(view, want) {
			t.Fatalf("dialog missing %q:\n%s", want, view)
		}
	}

	f.typeText("2")
	f.settle()

	if f.app.State().Dialog.Open {
		t.Fatalf("dialog should close after a scan")
	}
	if got := f.model.input.Value(); got != "EX-0777" {
		t.Fatalf("input = %q", got)
	}
	if diff := cmp.Diff([]string{"EX-0777"}, f.searcher.seen()); diff != "" {
		t.Fatalf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestDialogEscCloses(t *testing.T) {
	f := newFixture(t, Options{})
	f.press(tea.KeyCtrlQ)
	f.typeText("x")
	f.press(tea.KeyEsc)
	f.settle()

	if f.app.State().Dialog.Open {
		t.Fatalf("esc should close the dialog")
	}
	if f.model.input.Value() != "" {
		t.Fatalf("keys typed while the dialog is open must not reach the input")
	}
}

func TestDialogScannerWithoutDecoder(t *testing.T) {
	f := newFixture(t, Options{})
	f.press(tea.KeyCtrlQ)
	f.typeText("w")
	f.settle()

	if st := f.app.State(); st.ScannerOpen || st.Alert.Message != ui.MsgQRUnavailable {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestImagePromptScansFile(t *testing.T) {
	tests := []struct {
		name      string
		decoder   stubDecoder
		path      func(t *testing.T) string
		wantAlert string
		wantInput string
		wantQuery []string
	}{
		{
			name:      "decoded",
			decoder:   stubDecoder{value: "EX-0785"},
			path:      writeImage,
			wantInput: "EX-0785",
			wantQuery: []string{"EX-0785"},
		},
		{
			name:      "not detected",
			decoder:   stubDecoder{err: errors.New("no code")},
			path:      writeImage,
			wantAlert: ui.MsgQRNotDetected,
		},
		{
			name:      "missing file",
			decoder:   stubDecoder{value: "EX-0785"},
			path:      func(t *testing.T) string { return t.TempDir() + "/missing.png" },
			wantAlert: ui.MsgQRNotDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{Decoder: tt.decoder})
			f.press(tea.KeyCtrlQ)
			f.typeText("i")
			if f.model.mode != modeImagePath {
				t.Fatalf("expected image prompt")
			}
			f.typeText(tt.path(t))
			f.press(tea.KeyEnter)
			f.settle()

			if f.model.mode != modeSearch {
				t.Fatalf("prompt should close after enter")
			}
			// A decoded code also starts a search, whose alert may land last.
			if got := f.app.State().Alert.Message; tt.wantAlert != "" && got != tt.wantAlert {
				t.Fatalf("alert = %q, want %q", got, tt.wantAlert)
			}
			if got := f.model.input.Value(); got != tt.wantInput {
				t.Fatalf("input = %q, want %q", got, tt.wantInput)
			}
			if diff := cmp.Diff(tt.wantQuery, f.searcher.seen()); diff != "" {
				t.Fatalf("queries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/qr.png"
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestRowActions(t *testing.T) {
	f := newFixture(t, Options{})
	f.typeText("0785")
	f.press(tea.KeyEnter)
	f.settle()

	f.press(tea.KeyDown)
	f.press(tea.KeyCtrlY)
	f.press(tea.KeyCtrlO)
	f.press(tea.KeyCtrlE)
	f.settle()

	if diff := cmp.Diff([]string{"https://drive.test/b"}, f.clip.texts); diff != "" {
		t.Fatalf("clipboard mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://drive.test/b"}, f.opened); diff != "" {
		t.Fatalf("opened links mismatch (-want +got):\n%s", diff)
	}
	if len(f.download.names) != 1 || !strings.HasSuffix(f.download.names[0], ".csv") {
		t.Fatalf("unexpected downloads %v", f.download.names)
	}
}

func TestCtrlCQuits(t *testing.T) {
	f := newFixture(t, Options{})
	_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if f.model.View() != "" {
		t.Fatalf("view should be empty after quitting")
	}
}

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()
	n.Notify()
	n.Notify()
	if _, ok := n.wait()().(changedMsg); !ok {
		t.Fatalf("expected changedMsg")
	}
	select {
	case <-n:
		t.Fatalf("second notification should have been coalesced")
	default:
	}
}

func TestDialogClickOutsideCloses(t *testing.T) {
	f := newFixture(t, Options{})
	f.press(tea.KeyCtrlQ)

	st := f.app.State()
	top := strings.Count(f.model.bodyView(st), "\n")
	inside := tea.MouseMsg{X: 2, Y: top + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	f.model.Update(inside)
	if !f.app.State().Dialog.Open {
		t.Fatalf("a click inside the dialog must keep it open")
	}

	f.model.Update(tea.MouseMsg{X: 2, Y: 0, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	if !f.app.State().Dialog.Open {
		t.Fatalf("only presses close the dialog")
	}

	f.model.Update(tea.MouseMsg{X: 2, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	f.settle()
	if f.app.State().Dialog.Open {
		t.Fatalf("a click on the backdrop should close the dialog")
	}
}
