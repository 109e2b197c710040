package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-promotores/client"
	"github.com/aluiziolira/go-promotores/tui"
	"github.com/aluiziolira/go-promotores/ui"
	"github.com/spf13/cobra"
	"github.com/toqueteos/webbrowser"
)

var tuiScanDir string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal UI (same as default)",
	Long: `Start the terminal UI: type an OP and press enter to search, ctrl+q
opens the QR reader, ctrl+e saves the results as CSV and ctrl+y copies the
selected row's link.

Logs go to log_file (PROMOTORES_LOG_FILE) so the screen stays clean.

Note: This is the same as running the program without any commands.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiScanDir, "scan-dir", filepath.Join(os.TempDir(), "promotores-qr"), "Folder watched by the QR reader window")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogging(logOut, cfg.Verbose)

	if err := validConfig(); err != nil {
		return err
	}
	api, err := client.New(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	decoder := ui.ZXingDecoder{}
	notes := tui.NewNotifier()
	app := ui.NewApp(ui.Options{
		Searcher:      api,
		Health:        api,
		Decoder:       decoder,
		Clipboard:     ui.SystemClipboard{},
		Fallback:      ui.OSC52Clipboard{Out: os.Stdout},
		Downloader:    ui.DirDownloader{Dir: cfg.OutputDir},
		OpenLink:      webbrowser.Open,
		AlertDuration: cfg.AlertDuration,
		ScanDelay:     cfg.ScanDelay,
		Origin:        cfg.ServerURL,
		OnChange:      notes.Notify,
	})
	defer app.CloseScannerWindow()

	model := tui.New(ctx, app, notes, tui.Options{
		ScanDir: tuiScanDir,
		Decoder: decoder,
		Origin:  cfg.ServerURL,
	})
	return tui.Run(ctx, model)
}
