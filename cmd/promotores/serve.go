package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/aluiziolira/go-promotores/catalog"
	"github.com/aluiziolira/go-promotores/server"
	"github.com/aluiziolira/go-promotores/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	servePort      int
	serveHost      string
	serveDataFile  string
	serveSheet     string
	serveHeaderRow int
	serveNoWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog API and the search page",
	Long: `Serve loads the data file (XLSX or CSV) and exposes the search
API, the search page, the CSV download, QR uploads and Prometheus metrics.
The data file is reloaded when it changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host")
	serveCmd.Flags().StringVar(&serveDataFile, "data", "", "Data file path")
	serveCmd.Flags().StringVar(&serveSheet, "sheet", "", "Worksheet name (default: first sheet)")
	serveCmd.Flags().IntVar(&serveHeaderRow, "header-row", 0, "Zero-based header row")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the data file for changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("host") {
		cfg.Host = serveHost
	}
	if flags.Changed("data") {
		cfg.DataFile = serveDataFile
	}
	if flags.Changed("sheet") {
		cfg.SheetName = serveSheet
	}
	if flags.Changed("header-row") {
		cfg.HeaderRow = serveHeaderRow
	}
	if serveNoWatch {
		cfg.WatchData = false
	}
	if err := validConfig(); err != nil {
		return err
	}

	metrics := server.NewMetrics()
	cat, err := catalog.New(catalog.Options{
		Path:      cfg.DataFile,
		Sheet:     cfg.SheetName,
		HeaderRow: cfg.HeaderRow,
		CacheSize: cfg.CacheSize,
		OnReload:  metrics.ObserveReload,
	})
	if err != nil {
		return err
	}
	if err := cat.Refresh(); err != nil {
		// The page and /healthz report the failure; searches retry the load.
		slog.Warn("initial load failed", slog.Any("error", err))
	}

	srv, err := server.New(cfg, cat, ui.ZXingDecoder{}, metrics)
	if err != nil {
		return err
	}

	printBanner(cmd.OutOrStdout())

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if cfg.WatchData {
		g.Go(func() error {
			return cat.Watch(ctx)
		})
	}
	return g.Wait()
}

func printBanner(w io.Writer) {
	separator := "==============================================="
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Servidor CCB en: http://%s\n", cfg.Addr())
	fmt.Fprintf(w, "Archivo: %s  HeaderRow: %d\n", cfg.DataFile, cfg.HeaderRow)
	fmt.Fprintln(w, "Health: /healthz")
	fmt.Fprintln(w, separator)
}
