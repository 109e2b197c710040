// Package scraper reads the results table of rendered search pages and
// streams the rows through the export pipeline.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-promotores/client"
	"github.com/aluiziolira/go-promotores/config"
	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/parser"
	"github.com/aluiziolira/go-promotores/pipeline"
	"github.com/gocolly/colly/v2"
)

// Result summarises one run.
type Result struct {
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	PageCount    int
	RowCount     int
	EmptyPages   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Scraper wraps the colly collector for the search page.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	rowCount     int64
	emptyPages   int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper for pages served by cfg.ServerURL.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("server url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		// The same OP page may be requested on purpose, for example after a reload.
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}, nil
}

// PageURL returns the search page URL for op on the configured server.
func (s *Scraper) PageURL(op string) string {
	return strings.TrimRight(s.cfg.ServerURL, "/") + "/?op=" + url.QueryEscape(op)
}

// Run visits every page and streams its table rows into p. Pages that
// show the no-results placeholder count as empty pages.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline, pages ...string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(pages) == 0 {
		return nil, errors.New("no pages to visit")
	}
	s.configureHandlers(ctx, p)

	start := time.Now()
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		if err := s.collector.Visit(page); err != nil {
			return nil, fmt.Errorf("visit %s: %w", page, err)
		}
	}
	s.collector.Wait()

	return &Result{
		StartTime:    start,
		EndTime:      time.Now(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
		RowCount:     int(atomic.LoadInt64(&s.rowCount)),
		EmptyPages:   int(atomic.LoadInt64(&s.emptyPages)),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
	}, nil
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			if ctx.Err() != nil {
				r.Abort()
				return
			}
			r.Ctx.Put("start", time.Now())
			atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			s.Metrics.IncRequest("completed")
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := client.Classify(err, statusCode)
			category := client.ErrorLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			pageURL := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
			slog.Error("request error",
				slog.String("url", pageURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			s.Metrics.IncError(category)

			s.mu.Lock()
			s.failedURLs = append(s.failedURLs, pageURL)
			s.mu.Unlock()
		})

		s.collector.OnHTML("#results-table", func(e *colly.HTMLElement) {
			atomic.AddInt64(&s.pageCount, 1)
			records := extractRecords(e)
			if len(records) == 0 {
				atomic.AddInt64(&s.emptyPages, 1)
				return
			}
			atomic.AddInt64(&s.rowCount, int64(len(records)))
			s.Metrics.AddRows(len(records))
			if err := p.Process(records...); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		})
	})
}

// extractRecords maps the table header onto record fields and reads every
// data row. The link comes from the row's open action.
func extractRecords(e *colly.HTMLElement) []models.Record {
	var fields []string
	e.ForEach("thead th", func(_ int, th *colly.HTMLElement) {
		fields = append(fields, parser.MapColumn(parser.CleanHeader(th.Text)))
	})

	var records []models.Record
	e.ForEach("#results-body tr", func(_ int, tr *colly.HTMLElement) {
		if tr.DOM.Find("td[colspan]").Length() > 0 {
			return
		}
		var rec models.Record
		tr.ForEach("td", func(i int, td *colly.HTMLElement) {
			if i < len(fields) {
				rec.SetField(fields[i], strings.TrimSpace(td.Text))
			}
		})
		if link := tr.ChildAttr("a.btn-open", "href"); link != "" {
			rec.Enlace = tr.Request.AbsoluteURL(link)
		}
		if rec.OP == "" {
			return
		}
		records = append(records, rec)
	})
	return records
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
