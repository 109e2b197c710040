package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aluiziolira/go-promotores/export"
	"github.com/aluiziolira/go-promotores/models"
)

// ErrNoDecoder is returned by ScanImage when no QR decoder is configured.
var ErrNoDecoder = errors.New("ui: no QR decoder")

// HealthChecker reports the backend state.
type HealthChecker interface {
	Health(ctx context.Context) (models.Health, error)
}

// LinkOpener opens a link in a new context, such as a browser tab.
type LinkOpener func(url string) error

// Options wires an App. Searcher is required; everything else may be nil.
type Options struct {
	Searcher   Searcher
	Health     HealthChecker
	Decoder    QRDecoder
	Clipboard  ClipboardWriter
	Fallback   ClipboardWriter
	Downloader Downloader
	OpenLink   LinkOpener
	Scheduler  Scheduler

	AlertDuration time.Duration
	ScanDelay     time.Duration
	Now           func() time.Time

	// Origin is the app's own origin. Scanner messages must come from it
	// or from NullOrigin.
	Origin string

	// OnChange is called after every visible state change.
	OnChange func()
}

// Dialog is the QR dialog state.
type Dialog struct {
	Open    bool
	Presets []string
}

// State is a snapshot of everything a front end draws.
type State struct {
	Input        string
	InputFocused bool
	Alert        Alert
	Table        Table
	Dialog       Dialog
	ScannerOpen  bool
}

type scannerSession struct {
	window ScannerWindow
	inbox  chan scannerMessage
	done   chan struct{}
	once   sync.Once
}

type scannerMessage struct {
	origin string
	msg    models.QRMessage
}

func (s *scannerSession) stop() {
	s.once.Do(func() {
		close(s.done)
		if s.window != nil && !s.window.Closed() {
			if err := s.window.Close(); err != nil {
				slog.Debug("close scanner window", slog.Any("error", err))
			}
		}
	})
}

// App is the search screen. All methods are safe for concurrent use.
type App struct {
	opts   Options
	alerts *AlertPresenter
	search *SearchController
	clip   *Clipboard

	wg sync.WaitGroup

	mu      sync.Mutex
	input   string
	focused bool
	table   Table
	dialog  Dialog
	scanner *scannerSession
}

// NewApp builds an App from opts.
func NewApp(opts Options) *App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler
	}
	opts.Scheduler = guardedScheduler(opts.Scheduler)

	a := &App{opts: opts, table: RenderRecords(nil)}
	a.alerts = NewAlertPresenter(opts.AlertDuration, opts.Scheduler, func(Alert) { a.changed() })
	a.search = NewSearchController(opts.Searcher, a.alerts, a.setTable)
	a.clip = NewClipboard(opts.Clipboard, opts.Fallback, a.alerts, a.Go)
	return a
}

// Start focuses the input, checks the backend in the background and
// renders an empty result set.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.focused = true
	a.mu.Unlock()

	if a.opts.Health != nil {
		a.Go(func() { a.checkHealth(ctx) })
	}
	a.setTable(RenderRecords(nil))
}

func (a *App) checkHealth(ctx context.Context) {
	h, err := a.opts.Health.Health(ctx)
	if err != nil {
		slog.Error("health check failed", slog.Any("error", err))
		return
	}
	if h.OK {
		slog.Info("system loaded", slog.Int("rows", h.Rows))
		return
	}
	slog.Warn("data load problem", slog.String("error", h.ErrorText()))
	a.alerts.Show(fmt.Sprintf(MsgHealthWarning, h.ErrorText()), AlertError)
}

// State returns a snapshot for drawing.
func (a *App) State() State {
	a.mu.Lock()
	s := State{
		Input:        a.input,
		InputFocused: a.focused,
		Table:        a.table,
		Dialog: Dialog{
			Open:    a.dialog.Open,
			Presets: append([]string(nil), a.dialog.Presets...),
		},
		ScannerOpen: a.scanner != nil,
	}
	a.mu.Unlock()
	s.Alert = a.alerts.Current()
	return s
}

// Alerts returns the alert region.
func (a *App) Alerts() *AlertPresenter {
	return a.alerts
}

// SetInput replaces the search input text.
func (a *App) SetInput(text string) {
	a.mu.Lock()
	a.input = text
	a.mu.Unlock()
	a.changed()
}

// Input returns the search input text.
func (a *App) Input() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input
}

// Search runs a search for the current input and waits for it.
func (a *App) Search(ctx context.Context) error {
	return a.search.Search(ctx, a.Input())
}

// StartSearch validates and announces a search for the current input,
// then fetches it in the background. Newer searches do not cancel older
// ones; the last to finish wins.
func (a *App) StartSearch(ctx context.Context) {
	query, err := a.search.Begin(a.Input())
	if err != nil {
		return
	}
	a.Go(func() {
		_ = a.search.Run(ctx, query)
	})
}

// HandleKey reacts to a key press and reports whether it was used.
// "enter" searches and "esc" closes the QR dialog.
func (a *App) HandleKey(ctx context.Context, key string) bool {
	switch key {
	case "enter":
		a.StartSearch(ctx)
		return true
	case "esc":
		a.mu.Lock()
		open := a.dialog.Open
		a.mu.Unlock()
		if !open {
			return false
		}
		a.CloseDialog()
		return true
	}
	return false
}

// Clear empties the input, hides the alert and renders empty results.
func (a *App) Clear() {
	a.mu.Lock()
	a.input = ""
	a.mu.Unlock()
	a.alerts.Hide()
	a.setTable(RenderRecords(nil))
}

// ToggleQR opens the QR dialog, resetting its presets, or closes it.
func (a *App) ToggleQR() {
	a.mu.Lock()
	if a.dialog.Open {
		a.dialog = Dialog{}
	} else {
		a.dialog = Dialog{Open: true, Presets: append([]string(nil), ScannerPresets...)}
	}
	a.mu.Unlock()
	a.changed()
}

// CloseDialog closes the QR dialog if it is open.
func (a *App) CloseDialog() {
	a.mu.Lock()
	wasOpen := a.dialog.Open
	a.dialog = Dialog{}
	a.mu.Unlock()
	if wasOpen {
		a.changed()
	}
}

// BackdropClick handles a click outside the dialog content.
func (a *App) BackdropClick() {
	a.CloseDialog()
}

// SimulateScan behaves as if code had been scanned: it fills the input,
// closes the dialog and searches after the scan delay.
func (a *App) SimulateScan(ctx context.Context, code string) {
	a.mu.Lock()
	a.input = code
	a.dialog = Dialog{}
	a.mu.Unlock()
	a.changed()

	// The pending search counts as background work from now on, so Wait
	// never races the timer's own Go.
	a.wg.Add(1)
	a.opts.Scheduler.AfterFunc(a.opts.ScanDelay, func() {
		defer a.wg.Done()
		a.StartSearch(ctx)
	})
}

// ScanImage decodes a QR code from an uploaded image and searches for it.
func (a *App) ScanImage(ctx context.Context, r io.Reader) error {
	if a.opts.Decoder == nil {
		a.alerts.Show(MsgQRUnavailable, AlertError)
		return ErrNoDecoder
	}
	value, err := a.opts.Decoder.Decode(ctx, r)
	if err != nil {
		slog.Debug("qr decode failed", slog.Any("error", err))
		a.alerts.Show(MsgQRNotDetected, AlertError)
		return err
	}

	a.mu.Lock()
	a.input = value
	a.dialog = Dialog{}
	a.mu.Unlock()
	a.changed()

	a.StartSearch(ctx)
	a.alerts.Show(fmt.Sprintf(MsgQRDetected, value), AlertSuccess)
	return nil
}

// OpenScannerWindow opens a scanner window and listens for its result
// until a matching message arrives, the window is closed through
// CloseScannerWindow, or ctx ends. Opening a new window replaces the
// previous one and its listener.
func (a *App) OpenScannerWindow(ctx context.Context, open WindowOpener) error {
	a.CloseScannerWindow()

	window, err := open(func(origin string, msg models.QRMessage) {
		a.Deliver(origin, msg)
	})
	if err != nil {
		return fmt.Errorf("open scanner window: %w", err)
	}
	sess := &scannerSession{
		window: window,
		inbox:  make(chan scannerMessage, 8),
		done:   make(chan struct{}),
	}

	a.mu.Lock()
	a.scanner = sess
	a.mu.Unlock()

	a.Go(func() { a.listen(ctx, sess) })
	a.alerts.Show(MsgScannerOpening, AlertSuccess)
	return nil
}

// Deliver hands a cross-context message to the scanner listener. It
// reports whether a listener was there to receive it.
func (a *App) Deliver(origin string, msg models.QRMessage) bool {
	a.mu.Lock()
	sess := a.scanner
	a.mu.Unlock()
	if sess == nil {
		return false
	}

	select {
	case <-sess.done:
		return false
	case sess.inbox <- scannerMessage{origin: origin, msg: msg}:
		return true
	default:
		slog.Warn("scanner inbox full, message dropped", slog.String("origin", origin))
		return false
	}
}

// CloseScannerWindow closes the scanner window and drops its listener.
func (a *App) CloseScannerWindow() {
	a.mu.Lock()
	sess := a.scanner
	a.scanner = nil
	a.mu.Unlock()
	if sess != nil {
		sess.stop()
		a.changed()
	}
}

// ScannerListening reports whether a scanner listener is active.
func (a *App) ScannerListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanner != nil
}

func (a *App) listen(ctx context.Context, sess *scannerSession) {
	defer a.endSession(sess)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.done:
			return
		case m := <-sess.inbox:
			if !a.acceptOrigin(m.origin) || m.msg.Type != models.QRResultType {
				slog.Debug("scanner message ignored",
					slog.String("origin", m.origin),
					slog.String("type", m.msg.Type),
				)
				continue
			}
			a.SetInput(m.msg.Value)
			a.StartSearch(ctx)
			return
		}
	}
}

func (a *App) endSession(sess *scannerSession) {
	sess.stop()
	a.mu.Lock()
	current := a.scanner == sess
	if current {
		a.scanner = nil
	}
	a.mu.Unlock()
	if current {
		a.changed()
	}
}

func (a *App) acceptOrigin(origin string) bool {
	return origin == a.opts.Origin || origin == NullOrigin
}

// Copy copies text to the clipboard. The channel closes once the outcome
// alert is shown.
func (a *App) Copy(text string) <-chan struct{} {
	return a.clip.Copy(text)
}

// OpenLink opens a row link.
func (a *App) OpenLink(url string) error {
	if a.opts.OpenLink == nil {
		return fmt.Errorf("no link opener")
	}
	if err := a.opts.OpenLink(url); err != nil {
		slog.Error("open link failed", slog.String("url", url), slog.Any("error", err))
		return err
	}
	return nil
}

// Export saves the rendered table as CSV through the downloader.
func (a *App) Export() error {
	a.mu.Lock()
	table := a.table
	a.mu.Unlock()

	if !table.HasData() {
		a.alerts.Show(MsgNothingToExport, AlertError)
		return export.ErrNothingToExport
	}
	data, err := export.Table(table.Header, table.Texts(), true)
	if err != nil {
		a.alerts.Show(MsgNothingToExport, AlertError)
		return err
	}
	if a.opts.Downloader == nil {
		a.alerts.Show(MsgExportFailed, AlertError)
		return fmt.Errorf("no downloader")
	}
	name := export.FileName(a.opts.Now())
	if err := a.opts.Downloader.Save(name, data); err != nil {
		slog.Error("export failed", slog.String("file", name), slog.Any("error", err))
		a.alerts.Show(MsgExportFailed, AlertError)
		return err
	}
	a.alerts.Show(MsgExported, AlertSuccess)
	return nil
}

// Go runs f in the background. A panic in f is logged instead of
// crashing the program.
func (a *App) Go(f func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		guard(f)
	}()
}

// guard runs f, logging a panic instead of crashing the program.
func guard(f func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("background task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	f()
}

// guardedScheduler recovers panics in scheduled callbacks.
func guardedScheduler(s Scheduler) Scheduler {
	return SchedulerFunc(func(d time.Duration, f func()) {
		s.AfterFunc(d, func() { guard(f) })
	})
}

// Wait blocks until all background work has finished, including a
// search still waiting out its scan delay. Alert hide timers are not
// waited for. An open scanner window keeps its listener running, so
// close it first.
func (a *App) Wait() {
	a.wg.Wait()
}

func (a *App) setTable(t Table) {
	a.mu.Lock()
	a.table = t
	a.mu.Unlock()
	a.changed()
}

func (a *App) changed() {
	if a.opts.OnChange != nil {
		a.opts.OnChange()
	}
}
