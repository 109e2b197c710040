// Package server serves the OP catalog: the JSON API, the search page,
// CSV downloads, QR uploads and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-promotores/config"
	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/ui"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Catalog is the record store the handlers read from.
type Catalog interface {
	Health() models.Health
	Search(op string) ([]models.Record, error)
}

// Server wires the catalog into a gin engine.
type Server struct {
	cfg     *config.Config
	catalog Catalog
	decoder ui.QRDecoder
	metrics *Metrics
	page    *template.Template
	static  fs.FS
	engine  *gin.Engine
	now     func() time.Time
}

// New builds the server. decoder may be nil, in which case QR uploads are
// refused. metrics may be nil.
func New(cfg *config.Config, catalog Catalog, decoder ui.QRDecoder, metrics *Metrics) (*Server, error) {
	if catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	static, err := staticAssets()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		catalog: catalog,
		decoder: decoder,
		metrics: metrics,
		page:    page,
		static:  static,
		now:     time.Now,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(), Logger(s.metrics), Recovery())

	r.GET("/", s.handlePage)
	r.POST("/qr", s.handlePageUpload)
	r.GET("/exportar", s.handleExport)
	r.GET("/healthz", s.handleHealth)
	r.StaticFS("/static", http.FS(s.static))

	api := r.Group("/api")
	{
		api.GET("/promotores", s.handleSearch)
		api.POST("/qr", s.handleDecode)
	}

	if s.metrics != nil {
		path := s.cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
	return r
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			slog.String("addr", "http://"+srv.Addr),
			slog.String("file", s.cfg.DataFile),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
