package ui

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

// ErrClipboardUnsupported is returned when no system clipboard is reachable.
var ErrClipboardUnsupported = errors.New("ui: clipboard unsupported")

// ClipboardWriter puts text on a clipboard.
type ClipboardWriter interface {
	WriteAll(text string) error
}

// SystemClipboard writes through the platform clipboard utilities.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// OSC52Clipboard asks the terminal to set the clipboard by writing an
// OSC 52 sequence to Out.
type OSC52Clipboard struct {
	Out io.Writer
}

func (c OSC52Clipboard) WriteAll(text string) error {
	if c.Out == nil {
		return fmt.Errorf("osc52: no terminal output")
	}
	if _, err := osc52.New(text).WriteTo(c.Out); err != nil {
		return fmt.Errorf("osc52: %w", err)
	}
	return nil
}

// Clipboard copies links and reports the outcome as an alert. The primary
// writer is tried synchronously. When it is unsupported or errors the
// fallback is tried in the background; without a fallback the copy fails
// at once.
type Clipboard struct {
	primary  ClipboardWriter
	fallback ClipboardWriter
	alerts   *AlertPresenter
	spawn    func(func())
}

// NewClipboard builds a helper. spawn runs background work; nil uses a
// plain goroutine.
func NewClipboard(primary, fallback ClipboardWriter, alerts *AlertPresenter, spawn func(func())) *Clipboard {
	if spawn == nil {
		spawn = func(f func()) { go f() }
	}
	return &Clipboard{primary: primary, fallback: fallback, alerts: alerts, spawn: spawn}
}

// Copy copies text. The returned channel is closed once the outcome alert
// has been shown.
func (c *Clipboard) Copy(text string) <-chan struct{} {
	done := make(chan struct{})

	err := errors.New("no clipboard")
	if c.primary != nil {
		err = c.primary.WriteAll(text)
	}
	switch {
	case err == nil:
		c.alerts.Show(MsgCopied, AlertSuccess)
		close(done)
		return done
	case c.fallback == nil:
		slog.Debug("clipboard copy failed", slog.Any("error", err))
		c.alerts.Show(MsgCopyFailed, AlertError)
		close(done)
		return done
	}

	slog.Debug("clipboard primary failed, trying fallback", slog.Any("error", err))
	c.spawn(func() {
		defer close(done)
		if err := c.fallback.WriteAll(text); err != nil {
			slog.Error("clipboard copy failed", slog.Any("error", err))
			c.alerts.Show(MsgCopyFailed, AlertError)
			return
		}
		c.alerts.Show(MsgCopied, AlertSuccess)
	})
	return done
}
