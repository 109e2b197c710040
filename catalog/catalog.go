package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/parser"
	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSheetLabel is reported when no sheet was requested.
const DefaultSheetLabel = "(primera hoja)"

// ErrNotLoaded is returned by Search when the data file could not be loaded.
var ErrNotLoaded = errors.New("catalog: data not loaded")

// Options configures a Catalog.
type Options struct {
	Path      string
	Sheet     string
	HeaderRow int
	CacheSize int
	// OnReload, when set, is called after every load attempt.
	OnReload func(rows int, err error)
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// Catalog serves searches over the data file, reloading it when it changes.
type Catalog struct {
	opts  Options
	cache *lru.Cache[string, []models.Record]

	mu      sync.RWMutex
	data    *Dataset
	sheets  []string
	loadErr error
	stamp   fileStamp
	dirty   bool

	// generation increases on every load so cached results never outlive their dataset.
	generation uint64
}

// New builds a catalog. Nothing is read until the first Refresh.
func New(opts Options) (*Catalog, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("catalog: data file path is empty")
	}
	c := &Catalog{opts: opts, dirty: true}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []models.Record](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create search cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Refresh reloads the data file when it changed since the last load, was
// invalidated, or the previous load failed.
func (c *Catalog) Refresh() error {
	stamp, statErr := statFile(c.opts.Path)

	c.mu.RLock()
	fresh := c.freshLocked(stamp, statErr)
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freshLocked(stamp, statErr) {
		return nil
	}

	ds, sheets, err := LoadFile(c.opts.Path, c.opts.Sheet, c.opts.HeaderRow)
	c.sheets = sheets
	c.loadErr = err
	c.dirty = false
	c.stamp = stamp
	c.generation++
	if err != nil {
		c.data = nil
		slog.Error("catalog load failed", slog.String("file", c.opts.Path), slog.Any("error", err))
	} else {
		c.data = ds
		slog.Info("catalog loaded",
			slog.String("file", c.opts.Path),
			slog.String("sheet", ds.Sheet),
			slog.Int("rows", len(ds.Records)),
		)
		if len(ds.Records) > 0 {
			slog.Debug("catalog first row", slog.Any("record", ds.Records[0]))
		}
	}
	if c.cache != nil {
		c.cache.Purge()
	}
	if c.opts.OnReload != nil {
		c.opts.OnReload(c.rowsLocked(), err)
	}
	return err
}

// Invalidate forces the next Refresh to reload the file.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Health refreshes the catalog and reports its state.
func (c *Catalog) Health() models.Health {
	_ = c.Refresh()

	c.mu.RLock()
	defer c.mu.RUnlock()

	sheetLabel := c.opts.Sheet
	if sheetLabel == "" {
		sheetLabel = DefaultSheetLabel
	}
	sheets := make([]string, len(c.sheets))
	copy(sheets, c.sheets)

	h := models.Health{
		OK:              c.loadErr == nil && c.data != nil,
		File:            c.opts.Path,
		SheetRequested:  sheetLabel,
		SheetsAvailable: sheets,
		HeaderRow:       c.opts.HeaderRow,
		Rows:            c.rowsLocked(),
	}
	if c.loadErr != nil {
		msg := c.loadErr.Error()
		h.Error = &msg
	}
	return h
}

// Search returns the records for an OP query. The query is normalized;
// when no record matches exactly the spelling variants are tried. A load
// failure is returned wrapped around ErrNotLoaded with the load reason.
func (c *Catalog) Search(op string) ([]models.Record, error) {
	if err := c.Refresh(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotLoaded, err)
	}

	needle := parser.NormalizeOP(op)

	c.mu.RLock()
	ds, gen := c.data, c.generation
	c.mu.RUnlock()

	key := strconv.FormatUint(gen, 10) + "|" + needle
	if c.cache != nil {
		if hit, ok := c.cache.Get(key); ok {
			return cloneRecords(hit), nil
		}
	}

	rows := ds.Lookup(needle)
	if len(rows) == 0 {
		rows = ds.Lookup(parser.OPVariants(needle)...)
	}

	if c.cache != nil {
		c.cache.Add(key, cloneRecords(rows))
	}
	return rows, nil
}

// Watch marks the catalog stale whenever the data file is written,
// created, renamed or removed. The directory is watched so editors that
// replace the file are seen too. It returns when ctx is done.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(c.opts.Path)
	if err != nil {
		return fmt.Errorf("resolve data file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	slog.Info("watching data file", slog.String("file", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			slog.Debug("data file changed", slog.String("op", event.Op.String()))
			c.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("data file watcher", slog.Any("error", err))
		}
	}
}

func (c *Catalog) freshLocked(stamp fileStamp, statErr error) bool {
	return !c.dirty && c.loadErr == nil && c.data != nil && statErr == nil && stamp == c.stamp
}

func (c *Catalog) rowsLocked() int {
	if c.data == nil {
		return 0
	}
	return len(c.data.Records)
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}

func cloneRecords(in []models.Record) []models.Record {
	out := make([]models.Record, len(in))
	copy(out, in)
	return out
}
