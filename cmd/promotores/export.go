package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-promotores/client"
	"github.com/aluiziolira/go-promotores/export"
	"github.com/aluiziolira/go-promotores/pipeline"
	"github.com/spf13/cobra"
)

var (
	exportOPs      []string
	exportOPsFile  string
	exportFormat   string
	exportOutput   string
	exportParallel int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Search many OPs and write the results to a file",
	Long: `Export searches every OP given with --op or listed in --ops-file
(one per line, # starts a comment) and writes the deduplicated records as
CSV, JSONL or both.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringArrayVar(&exportOPs, "op", nil, "OP to search (repeatable)")
	exportCmd.Flags().StringVar(&exportOPsFile, "ops-file", "", "File with one OP per line")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: csv, json, or dual")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: dated file in the output dir)")
	exportCmd.Flags().IntVar(&exportParallel, "parallel", 0, "Concurrent searches")
}

func runExport(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("format") {
		cfg.OutputFormat = strings.ToLower(exportFormat)
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallelism = exportParallel
	}
	if err := validConfig(); err != nil {
		return err
	}

	ops := append([]string(nil), exportOPs...)
	if exportOPsFile != "" {
		f, err := os.Open(exportOPsFile)
		if err != nil {
			return fmt.Errorf("open ops file: %w", err)
		}
		fromFile, err := pipeline.ReadOPs(f)
		f.Close()
		if err != nil {
			return err
		}
		ops = append(ops, fromFile...)
	}
	if len(ops) == 0 {
		return errors.New("no OPs given: use --op or --ops-file")
	}

	output := exportOutput
	if output == "" {
		output = filepath.Join(cfg.OutputDir, export.FileName(time.Now()))
	}

	api, err := client.New(cfg)
	if err != nil {
		return err
	}
	writer, err := pipeline.NewWriter(cfg.OutputFormat, output)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	slog.Info("starting export",
		slog.String("server", api.BaseURL()),
		slog.Int("ops", len(ops)),
		slog.Int("workers", cfg.Parallelism),
	)

	ctx := cmd.Context()
	start := time.Now()
	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	searchErr := pipeline.SearchAll(ctx, p, api, ops, cfg.Parallelism)
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	if searchErr != nil {
		return searchErr
	}

	metrics := p.GetMetrics()
	printExportSummary(cmd, len(ops), time.Since(start), output, metrics)
	return writer.Validate()
}

func printExportSummary(cmd *cobra.Command, ops int, duration time.Duration, output string, metrics map[string]any) {
	w := cmd.OutOrStdout()
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Export complete")

	processed, _ := metrics["processed_records"].(int64)
	fmt.Fprintf(w, "  OPs:           %d\n", ops)
	fmt.Fprintf(w, "  Records:       %d\n", processed)
	if failed, ok := metrics["search_errors"].(map[string]int); ok && len(failed) > 0 {
		fmt.Fprintf(w, "  Failed:        %v\n", failed)
	}
	if skipped, ok := metrics["validation_errors"].(map[string]int); ok && len(skipped) > 0 {
		fmt.Fprintf(w, "  Skipped:       %v\n", skipped)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintf(w, "  Output file:   %s\n", output)
	fmt.Fprintln(w, separator)
}
