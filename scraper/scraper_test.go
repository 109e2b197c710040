package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aluiziolira/go-promotores/catalog"
	"github.com/aluiziolira/go-promotores/config"
	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/pipeline"
	"github.com/aluiziolira/go-promotores/server"
	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
)

const fixtureCSV = `OP,Cliente,Nombre,Descripcion,Cantidad,Talla,QR,Enlace
ex-0785,CCB,Ana,Polo,12,M,QR-1,https://drive.test/a
EX 0785,CCB,Luis,Chaqueta,3,L,QR-2,
777,Sertecpet,María,Gorra,5,U,QR-3,https://drive.test/c
`

type collectingWriter struct {
	mu      sync.Mutex
	records []models.Record
}

func (cw *collectingWriter) Write(records []models.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.records = append(cw.records, records...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) All() []models.Record {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]models.Record, len(cw.records))
	copy(out, cw.records)
	return out
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ServerURL = "http://promotores.test"
	cfg.Parallelism = 2
	cfg.BatchSize = 8
	return cfg
}

// handlerResponder serves mocked requests from an in-process handler.
func handlerResponder(h http.Handler) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		resp := rec.Result()
		resp.Request = req
		return resp, nil
	}
}

func catalogHandler(t *testing.T) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promotores.csv")
	if err := os.WriteFile(path, []byte(fixtureCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cat, err := catalog.New(catalog.Options{Path: path})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	srv, err := server.New(config.DefaultConfig(), cat, nil, nil)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv.Handler()
}

func TestScraperReadsRenderedPages(t *testing.T) {
	cfg := testConfig()

	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(handlerResponder(catalogHandler(t)))

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.collector.WithTransport(transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	result, err := s.Run(context.Background(), p, s.PageURL("0785"), s.PageURL("777"), s.PageURL("9999"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if result.PageCount != 3 || result.EmptyPages != 1 || result.RowCount != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ErrorCount != 0 {
		t.Fatalf("unexpected errors: %v", result.ErrorsByType)
	}

	records := writer.All()
	sort.Slice(records, func(i, j int) bool { return records[i].Key() < records[j].Key() })
	want := []models.Record{
		{OP: "EX0785", Cliente: "CCB", Nombre: "Ana", Descripcion: "Polo", Cantidad: "12", Talla: "M", QR: "QR-1", Enlace: "https://drive.test/a"},
		{OP: "EX0785", Cliente: "CCB", Nombre: "Luis", Descripcion: "Chaqueta", Cantidad: "3", Talla: "L", QR: "QR-2"},
		{OP: "EX777", Cliente: "Sertecpet", Nombre: "María", Descripcion: "Gorra", Cantidad: "5", Talla: "U", QR: "QR-3", Enlace: "https://drive.test/c"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestScraperHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusInternalServerError, expected: "server"},
		{status: http.StatusBadGateway, expected: "server"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize = 1

			transport := httpmock.NewMockTransport()
			transport.RegisterNoResponder(httpmock.NewStringResponder(tt.status, ""))

			s, err := NewScraper(cfg)
			if err != nil {
				t.Fatalf("new scraper: %v", err)
			}
			s.collector.WithTransport(transport)

			writer := &collectingWriter{}
			p := pipeline.NewPipeline(context.Background(), writer, cfg)
			p.Start(1)

			page := s.PageURL("0785")
			result, err := s.Run(context.Background(), p, page)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if err := p.Close(); err != nil {
				t.Fatalf("close pipeline: %v", err)
			}

			if got := result.ErrorsByType[tt.expected]; got == 0 {
				t.Fatalf("expected %q classification for status %d, got %v", tt.expected, tt.status, result.ErrorsByType)
			}
			if diff := cmp.Diff([]string{page}, result.FailedURLs); diff != "" {
				t.Fatalf("failed urls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScraperRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	cfg.ServerURL = "not a url"
	if _, err := NewScraper(cfg); err == nil {
		t.Fatalf("expected error for server url without host")
	}

	s, err := NewScraper(testConfig())
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	p := pipeline.NewPipeline(context.Background(), &collectingWriter{}, testConfig())
	p.Start(1)
	defer p.Close()
	if _, err := s.Run(context.Background(), p); err == nil {
		t.Fatalf("expected error without pages")
	}
}

func TestPageURL(t *testing.T) {
	cfg := testConfig()
	cfg.ServerURL = "http://promotores.test/"
	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	if got := s.PageURL("EX 0785&x"); got != "http://promotores.test/?op=EX+0785%26x" {
		t.Fatalf("page url = %q", got)
	}
	if !strings.HasPrefix(s.PageURL(""), "http://promotores.test/?op=") {
		t.Fatalf("unexpected empty page url")
	}
}

func BenchmarkPipeline_Throughput(b *testing.B) {
	cfg := testConfig()
	cfg.BatchSize = 64

	for _, workers := range []int{4, 8, 16} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			writer := &collectingWriter{}
			p := pipeline.NewPipeline(context.Background(), writer, cfg)
			p.Start(workers)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rec := models.Record{OP: fmt.Sprintf("EX%d", i), Cliente: "CCB", Nombre: "Bench"}
				if err := p.Process(rec); err != nil {
					b.Fatalf("process: %v", err)
				}
			}
			b.StopTimer()
			if err := p.Close(); err != nil {
				b.Fatalf("close: %v", err)
			}
			elapsed := b.Elapsed().Seconds()
			if elapsed > 0 {
				b.ReportMetric(float64(b.N)/elapsed, "items/sec")
			}
		})
	}
}
