package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-promotores/client"
	"github.com/aluiziolira/go-promotores/config"
	"github.com/aluiziolira/go-promotores/models"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]models.Record
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(records []models.Record) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]models.Record, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func (mw *mockWriter) ops() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var ops []string
	for _, batch := range mw.batches {
		for _, rec := range batch {
			ops = append(ops, rec.OP)
		}
	}
	return ops
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write([]models.Record) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

func record(op, nombre string) models.Record {
	return models.Record{OP: op, Cliente: "CCB", Nombre: nombre, Cantidad: "1", Enlace: "https://drive.test/" + nombre}
}

func TestPipelineProcessValidationAndDedup(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	valid := record("EX0785", "Ana")
	invalid := record("", "Nadie")
	duplicate := record("EX0785", "Ana")

	if err := p.Process(valid, invalid, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 1 {
		t.Fatalf("written records = %d, want 1", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["invalid_record"] == 0 {
		t.Fatalf("expected invalid_record validation error")
	}
	if validation["duplicate_record"] == 0 {
		t.Fatalf("expected duplicate_record validation error")
	}
	if processed := metrics["processed_records"].(int64); processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
}

func TestPipelineNormalizesOP(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	p.Start(1)

	// Both spellings collapse to one record once normalised.
	if err := p.Process(record("ex-0785", "Ana"), record("EX0785", "Ana")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if diff := cmp.Diff([]string{"EX0785"}, writer.ops()); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 65; i++ {
		if err := p.Process(record("EX"+strconv.Itoa(1000+i), "Ana")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	for i := 0; i < 100; i++ {
		if err := p.Process(record("EX"+strconv.Itoa(i+200), "Luis")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 100 {
		t.Fatalf("written records = %d, want 100", got)
	}
	if err := p.Process(record("EX1", "late")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed after close, got %v", err)
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(record("EX0001", "Blocked")); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}

type mapSearcher map[string][]models.Record

func (m mapSearcher) Search(_ context.Context, op string) ([]models.Record, error) {
	switch op {
	case "down":
		return nil, client.ErrConnection{Err: errors.New("connection refused")}
	case "bad":
		return nil, &models.APIError{Status: 400, Message: "No se pudo cargar el archivo"}
	}
	return m[op], nil
}

func TestSearchAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	searcher := mapSearcher{
		"0785": {record("EX0785", "Ana"), record("EX0785", "Luis")},
		// Overlaps with 0785 and is de-duplicated.
		"EX-0785": {record("EX0785", "Ana")},
		"777":     {record("EX777", "María")},
	}
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	p.Start(2)

	ops := []string{"0785", " ", "EX-0785", "777", "down", "bad", "9999"}
	if err := SearchAll(context.Background(), p, searcher, ops, 3); err != nil {
		t.Fatalf("search all: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 3 {
		t.Fatalf("written records = %d, want 3", got)
	}
	searchErrors := p.GetMetrics()["search_errors"].(map[string]int)
	if diff := cmp.Diff(map[string]int{"connection": 1, "api": 1}, searchErrors); diff != "" {
		t.Fatalf("search errors mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchAllStopsWhenPipelineClosed(t *testing.T) {
	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig())
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	searcher := mapSearcher{"0785": {record("EX0785", "Ana")}}
	err := SearchAll(context.Background(), p, searcher, []string{"0785"}, 1)
	if !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestReadOPs(t *testing.T) {
	input := strings.Join([]string{"# turno mañana", "0785", "", "  EX-0777  ", "#", "ex 12"}, "\n")
	ops, err := ReadOPs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read ops: %v", err)
	}
	if diff := cmp.Diff([]string{"0785", "EX-0777", "ex 12"}, ops); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func ExampleReadOPs() {
	ops, _ := ReadOPs(strings.NewReader("0785\n# skip\n777\n"))
	fmt.Println(ops)
	// Output: [0785 777]
}
