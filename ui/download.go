package ui

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Downloader receives exported files.
type Downloader interface {
	Save(name string, data []byte) error
}

// DirDownloader saves files into Dir.
type DirDownloader struct {
	Dir string
}

func (d DirDownloader) Save(name string, data []byte) error {
	path := filepath.Join(d.Dir, name)
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	slog.Info("file saved", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
