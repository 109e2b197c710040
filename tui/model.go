// Package tui is the terminal front end of the search screen. It draws
// ui.State and forwards key presses to ui.App.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-promotores/ui"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const helpText = "enter: buscar • ctrl+q: QR • ctrl+l: limpiar • ctrl+e: exportar • ctrl+y: copiar enlace • ctrl+o: abrir enlace • ↑/↓: filas • ctrl+c: salir"

var columnWidths = []int{10, 14, 18, 24, 9, 6, 10, 14}

// Notifier wakes the model when the App state changes. Pass Notify as
// ui.Options.OnChange.
type Notifier chan struct{}

// NewNotifier returns a notifier that coalesces pending wake-ups.
func NewNotifier() Notifier {
	return make(Notifier, 1)
}

// Notify never blocks.
func (n Notifier) Notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}

type changedMsg struct{}

func (n Notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n
		return changedMsg{}
	}
}

// Options configures the QR inputs of the model.
type Options struct {
	// ScanDir is the drop folder watched while the scanner window is open.
	ScanDir string
	Decoder ui.QRDecoder
	Origin  string
}

type mode int

const (
	modeSearch mode = iota
	modeImagePath
)

// Model is the bubbletea model of the search screen.
type Model struct {
	ctx   context.Context
	app   *ui.App
	notes Notifier
	opts  Options

	input textinput.Model
	path  textinput.Model
	table table.Model
	mode  mode

	width    int
	height   int
	quitting bool
}

// New builds the model. notes must be the notifier wired into app.
func New(ctx context.Context, app *ui.App, notes Notifier, opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "Ingrese OP (ej. EX-0785)"
	input.CharLimit = 64
	input.Focus()

	path := textinput.New()
	path.Placeholder = "ruta/a/imagen.png"

	columns := make([]table.Column, len(ui.Columns))
	for i, title := range ui.Columns {
		columns[i] = table.Column{Title: title, Width: columnWidths[i]}
	}
	results := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	return &Model{
		ctx:   ctx,
		app:   app,
		notes: notes,
		opts:  opts,
		input: input,
		path:  path,
		table: results,
	}
}

func (m *Model) Init() tea.Cmd {
	m.app.Start(m.ctx)
	return tea.Batch(textinput.Blink, m.notes.wait())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(3, msg.Height-16))
		return m, nil

	case changedMsg:
		m.sync()
		return m, m.notes.wait()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		m.app.CloseScannerWindow()
		return m, tea.Quit
	}
	if m.mode == modeImagePath {
		return m.handleImageKey(msg)
	}

	if dialog := m.app.State().Dialog; dialog.Open && key != "ctrl+q" {
		return m, m.handleDialogKey(key, dialog)
	}

	var cmd tea.Cmd
	switch key {
	case "enter", "esc":
		m.app.SetInput(m.input.Value())
		m.app.HandleKey(m.ctx, key)
	case "ctrl+q":
		m.app.ToggleQR()
	case "ctrl+l":
		m.input.SetValue("")
		m.app.Clear()
	case "ctrl+e":
		// The outcome is reported in the alert.
		_ = m.app.Export()
	case "ctrl+y":
		if link := m.selectedLink(); link != "" {
			m.app.Copy(link)
		}
	case "ctrl+o":
		if link := m.selectedLink(); link != "" {
			_ = m.app.OpenLink(link)
		}
	case "up", "down", "pgup", "pgdown", "home", "end":
		m.table, cmd = m.table.Update(msg)
	default:
		m.input, cmd = m.input.Update(msg)
		m.app.SetInput(m.input.Value())
	}
	return m, cmd
}

// handleDialogKey owns the keyboard while the QR dialog is open: a preset
// number simulates a scan, w opens the folder scanner, i asks for an
// image path and esc closes.
func (m *Model) handleDialogKey(key string, dialog ui.Dialog) tea.Cmd {
	switch key {
	case "esc":
		m.app.HandleKey(m.ctx, key)
		return nil
	case "w":
		m.openScanner()
		return nil
	case "i":
		m.mode = modeImagePath
		m.path.SetValue("")
		m.input.Blur()
		return m.path.Focus()
	}

	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(dialog.Presets) {
		code := dialog.Presets[n-1]
		m.input.SetValue(code)
		m.app.SimulateScan(m.ctx, code)
	}
	return nil
}

// handleMouse closes the QR dialog on a left click outside its box.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return
	}
	st := m.app.State()
	if !st.Dialog.Open {
		return
	}
	top := strings.Count(m.bodyView(st), "\n")
	box := dialogStyle.Render(m.dialogView(st.Dialog))
	inside := msg.Y >= top && msg.Y < top+lipgloss.Height(box) && msg.X < lipgloss.Width(box)
	if !inside {
		m.app.BackdropClick()
	}
}

func (m *Model) handleImageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveImageMode()
		return m, m.input.Focus()
	case "enter":
		path := strings.TrimSpace(m.path.Value())
		m.leaveImageMode()
		if path != "" {
			m.scanFile(path)
		}
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m *Model) leaveImageMode() {
	m.mode = modeSearch
	m.path.Blur()
}

func (m *Model) scanFile(path string) {
	m.app.Go(func() {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("open qr image", slog.String("path", path), slog.Any("error", err))
			m.app.Alerts().Show(ui.MsgQRNotDetected, ui.AlertError)
			return
		}
		defer f.Close()
		// Failures are reported in the alert.
		_ = m.app.ScanImage(m.ctx, f)
	})
}

func (m *Model) openScanner() {
	if m.opts.ScanDir == "" || m.opts.Decoder == nil {
		m.app.Alerts().Show(ui.MsgQRUnavailable, ui.AlertError)
		return
	}
	opener := ui.FolderScannerOpener(m.opts.ScanDir, m.opts.Origin, m.opts.Decoder)
	if err := m.app.OpenScannerWindow(m.ctx, opener); err != nil {
		slog.Error("open scanner window", slog.Any("error", err))
		m.app.Alerts().Show(ui.MsgQRUnavailable, ui.AlertError)
		return
	}
	m.app.CloseDialog()
}

func (m *Model) selectedLink() string {
	t := m.app.State().Table
	if !t.HasData() {
		return ""
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i].Link()
}

// sync pulls App state changed from outside the key loop: search
// results, scanned codes and alert timeouts.
func (m *Model) sync() {
	st := m.app.State()
	if st.Input != m.input.Value() {
		m.input.SetValue(st.Input)
		m.input.CursorEnd()
	}
	m.table.SetRows(tableRows(st.Table))
}

func tableRows(t ui.Table) []table.Row {
	if !t.HasData() {
		return nil
	}
	rows := make([]table.Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = table.Row(r.Texts())
	}
	return rows
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.app.State()

	var b strings.Builder
	b.WriteString(m.bodyView(st))
	if st.Dialog.Open {
		b.WriteString(dialogStyle.Render(m.dialogView(st.Dialog)))
		b.WriteString("\n")
	}
	if m.mode == modeImagePath {
		b.WriteString(labelStyle.Render("Imagen QR: "))
		b.WriteString(m.path.View())
		b.WriteString("\n")
	}
	if st.ScannerOpen {
		b.WriteString(presetStyle.Render(fmt.Sprintf("Lector QR activo: deje la imagen del código en %s", m.opts.ScanDir)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(helpText))
	return b.String()
}

// bodyView draws everything above the QR dialog.
func (m *Model) bodyView(st ui.State) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Consulta de promotores CCB"))
	b.WriteString("\n")
	if st.Alert.Visible {
		b.WriteString(alertStyle(st.Alert.Kind).Render(st.Alert.Message))
	}
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("OP: "))
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")
	if !st.Table.HasData() && len(st.Table.Rows) > 0 {
		b.WriteString(st.Table.Rows[0].Texts()[0])
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) dialogView(d ui.Dialog) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Lector QR"))
	b.WriteString("\n\n")
	for i, code := range d.Presets {
		b.WriteString(presetStyle.Render(fmt.Sprintf("%d: %s", i+1, code)))
		b.WriteString("\n")
	}
	b.WriteString("w: abrir lector por carpeta\n")
	b.WriteString("i: subir imagen\n")
	b.WriteString("esc o clic fuera: cerrar")
	return b.String()
}

// Run starts the program on the alternate screen with mouse reporting
// and blocks until quit or ctx ends.
func Run(ctx context.Context, m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
