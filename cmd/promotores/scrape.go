package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aluiziolira/go-promotores/export"
	"github.com/aluiziolira/go-promotores/pipeline"
	"github.com/aluiziolira/go-promotores/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	scrapeURLs        []string
	scrapeOPs         []string
	scrapeOutput      string
	scrapeMetricsAddr string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Read the results table of rendered search pages into a CSV",
	Long: `Scrape visits search pages served by "promotores serve" (or any page
with the same results table), reads their rows and writes them in the
download CSV format. Pages are given as full URLs with --url or as OPs
with --op, which are resolved against --server.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringArrayVar(&scrapeURLs, "url", nil, "Page URL to read (repeatable)")
	scrapeCmd.Flags().StringArrayVar(&scrapeOPs, "op", nil, "OP whose search page to read (repeatable)")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Output CSV file (default: dated file in the output dir)")
	scrapeCmd.Flags().StringVar(&scrapeMetricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	if err := validConfig(); err != nil {
		return err
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}
	pages := append([]string(nil), scrapeURLs...)
	for _, op := range scrapeOPs {
		pages = append(pages, s.PageURL(op))
	}
	if len(pages) == 0 {
		return errors.New("no pages given: use --url or --op")
	}

	output := scrapeOutput
	if output == "" {
		output = filepath.Join(cfg.OutputDir, export.FileName(time.Now()))
	}
	writer, err := pipeline.NewCSVWriter(output)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	if scrapeMetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              scrapeMetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", scrapeMetricsAddr))
	}

	slog.Info("starting scrape", slog.Int("pages", len(pages)), slog.Int("workers", cfg.Parallelism))

	ctx := cmd.Context()
	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)

	result, err := s.Run(ctx, p, pages...)
	if err != nil {
		p.Close()
		return fmt.Errorf("scraping failed: %w", err)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}

	printScrapeSummary(cmd, result, output)
	return writer.Validate()
}

func printScrapeSummary(cmd *cobra.Command, result *scraper.Result, output string) {
	w := cmd.OutOrStdout()
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Scrape complete")
	fmt.Fprintf(w, "  Pages:         %d\n", result.PageCount)
	fmt.Fprintf(w, "  Empty pages:   %d\n", result.EmptyPages)
	fmt.Fprintf(w, "  Rows:          %d\n", result.RowCount)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(w, "  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.Duration())
	fmt.Fprintf(w, "  Output file:   %s\n", output)
	fmt.Fprintln(w, separator)
}
