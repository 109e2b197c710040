package ui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aluiziolira/go-promotores/models"
	"github.com/fsnotify/fsnotify"
)

// NullOrigin is the origin reported by sandboxed or file-backed senders.
const NullOrigin = "null"

// PostFunc delivers a cross-context message together with its sender origin.
type PostFunc func(origin string, msg models.QRMessage)

// ScannerWindow is a child scanner context opened by the app.
type ScannerWindow interface {
	Close() error
	Closed() bool
}

// WindowOpener opens a scanner window that posts its results through post.
type WindowOpener func(post PostFunc) (ScannerWindow, error)

// FolderScanner is a scanner window backed by a drop folder: every image
// written into the folder is decoded and its QR value posted back.
type FolderScanner struct {
	dir     string
	origin  string
	decoder QRDecoder
	post    PostFunc
	watcher *fsnotify.Watcher

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// FolderScannerOpener returns an opener for a FolderScanner on dir.
func FolderScannerOpener(dir, origin string, decoder QRDecoder) WindowOpener {
	return func(post PostFunc) (ScannerWindow, error) {
		return OpenFolderScanner(dir, origin, decoder, post)
	}
}

// OpenFolderScanner creates dir if needed and starts watching it.
func OpenFolderScanner(dir, origin string, decoder QRDecoder, post PostFunc) (*FolderScanner, error) {
	if decoder == nil {
		return nil, fmt.Errorf("folder scanner: no decoder")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scanner folder %q: %w", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	s := &FolderScanner{
		dir:     dir,
		origin:  origin,
		decoder: decoder,
		post:    post,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	slog.Info("scanner folder open", slog.String("dir", dir))
	return s, nil
}

// Dir returns the watched folder.
func (s *FolderScanner) Dir() string {
	return s.dir
}

// Close stops watching. It is safe to call more than once.
func (s *FolderScanner) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}

// Closed reports whether Close was called.
func (s *FolderScanner) Closed() bool {
	return s.closed.Load()
}

func (s *FolderScanner) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isImageFile(event.Name) {
				continue
			}
			s.scan(event.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("scanner folder watcher", slog.Any("error", err))
		}
	}
}

// scan decodes one file. Files still being written fail to decode and
// are picked up again on their next write event.
func (s *FolderScanner) scan(path string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Debug("scanner open failed", slog.String("file", path), slog.Any("error", err))
		return
	}
	defer f.Close()

	value, err := s.decoder.Decode(context.Background(), f)
	if err != nil {
		slog.Debug("scanner decode failed", slog.String("file", path), slog.Any("error", err))
		return
	}
	if s.Closed() || s.post == nil {
		return
	}
	s.post(s.origin, models.QRMessage{Type: models.QRResultType, Value: value})
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}
