package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aluiziolira/go-promotores/config"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
	serverURL  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "promotores",
	Short: "Consulta de promotores por OP",
	Long: `promotores looks up promoter records by work-order code (OP).

It serves the catalog over HTTP, searches it from the terminal, exports
results as CSV or JSON and runs an interactive terminal UI. Running the
program without a command starts the terminal UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentPreRunE = loadConfig
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Base URL of the promotores API")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(tuiCmd)
}

// loadConfig reads .env, the config file and the environment, then
// applies the persistent flags on top.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Verbose = true
	}
	if serverURL != "" {
		loaded.ServerURL = strings.TrimSpace(serverURL)
	}
	cfg = loaded

	// The TUI owns the screen and sets up its own log destination.
	if cmd.HasParent() && cmd.Name() != tuiCmd.Name() {
		setupLogging(os.Stdout, cfg.Verbose)
	}
	return nil
}

func validConfig() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
