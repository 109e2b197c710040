package ui

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/aluiziolira/go-promotores/models"
)

type scheduledCall struct {
	delay time.Duration
	fn    func()
}

// fakeScheduler queues callbacks until the test fires them.
type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduledCall
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	s.calls = append(s.calls, scheduledCall{delay: d, fn: f})
	s.mu.Unlock()
}

func (s *fakeScheduler) pending() []scheduledCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduledCall(nil), s.calls...)
}

// fire runs the i-th scheduled callback.
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	fn := s.calls[i].fn
	s.mu.Unlock()
	fn()
}

// fireDelay runs every callback scheduled with delay d, oldest first.
func (s *fakeScheduler) fireDelay(d time.Duration) int {
	fired := 0
	for _, c := range s.pending() {
		if c.delay == d {
			c.fn()
			fired++
		}
	}
	return fired
}

// fakeSearcher answers every query with the same result.
type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	records []models.Record
	err     error
	// gate, when set, blocks each search until it is closed.
	gate chan struct{}
}

func (f *fakeSearcher) Search(ctx context.Context, op string) ([]models.Record, error) {
	f.mu.Lock()
	f.queries = append(f.queries, op)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeHealth struct {
	health models.Health
	err    error
}

func (f fakeHealth) Health(context.Context) (models.Health, error) {
	return f.health, f.err
}

type fakeDecoder struct {
	value string
	err   error
}

func (f fakeDecoder) Decode(context.Context, io.Reader) (string, error) {
	return f.value, f.err
}

type fakeClipboard struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeClipboard) WriteAll(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeClipboard) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type memDownloader struct {
	mu    sync.Mutex
	err   error
	files map[string][]byte
}

func (m *memDownloader) Save(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

type fakeWindow struct {
	mu     sync.Mutex
	closed bool
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("already closed")
	}
	w.closed = true
	return nil
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

var twoRecords = []models.Record{
	{OP: "EX0785", Cliente: "CCB", Nombre: "Ana", Descripcion: "Polo", Cantidad: "12", Talla: "M", QR: "QR-1", Enlace: "https://drive.test/a"},
	{OP: "EX0785", Cliente: "CCB", Nombre: "Luis", Descripcion: `Chaqueta "Pro"`, Cantidad: "3", Talla: "L", QR: "QR-2"},
}

// gatedSearcher holds every query until its own gate is released and
// records whether the query's context had been cancelled by then.
type gatedSearcher struct {
	results map[string][]models.Record
	gates   map[string]chan struct{}
	started chan string

	mu      sync.Mutex
	ctxErrs map[string]error
}

func newGatedSearcher(results map[string][]models.Record) *gatedSearcher {
	g := &gatedSearcher{
		results: results,
		gates:   make(map[string]chan struct{}, len(results)),
		started: make(chan string, len(results)),
		ctxErrs: make(map[string]error),
	}
	for op := range results {
		g.gates[op] = make(chan struct{})
	}
	return g
}

func (g *gatedSearcher) Search(ctx context.Context, op string) ([]models.Record, error) {
	g.started <- op
	<-g.gates[op]
	g.mu.Lock()
	g.ctxErrs[op] = ctx.Err()
	g.mu.Unlock()
	return g.results[op], nil
}

func (g *gatedSearcher) release(op string) { close(g.gates[op]) }

func (g *gatedSearcher) contextErrors() map[string]error {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]error, len(g.ctxErrs))
	for k, v := range g.ctxErrs {
		out[k] = v
	}
	return out
}
