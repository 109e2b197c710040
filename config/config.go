package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds settings for the catalog server, the API client and the UI.
type Config struct {
	// Server side.
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	DataFile    string `mapstructure:"data_file"`
	SheetName   string `mapstructure:"sheet_name"`
	HeaderRow   int    `mapstructure:"header_row"`
	CacheSize   int    `mapstructure:"cache_size"`
	WatchData   bool   `mapstructure:"watch_data"`
	MetricsPath string `mapstructure:"metrics_path"`

	// Client side.
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`

	// UI timings.
	AlertDuration time.Duration `mapstructure:"alert_duration"`
	ScanDelay     time.Duration `mapstructure:"scan_delay"`

	// Export.
	OutputDir    string `mapstructure:"output_dir"`
	OutputFormat string `mapstructure:"output_format"` // csv, json, or dual
	Parallelism  int    `mapstructure:"parallelism"`
	BatchSize    int    `mapstructure:"batch_size"`

	LogFile string `mapstructure:"log_file"`
	Verbose bool   `mapstructure:"verbose"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{
		Port:          8000,
		Host:          "127.0.0.1",
		DataFile:      "USUARIOS_SERTECPET.xlsx",
		SheetName:     "",
		HeaderRow:     1,
		CacheSize:     256,
		WatchData:     true,
		MetricsPath:   "/metrics",
		ServerURL:     "http://127.0.0.1:8000",
		Timeout:       10 * time.Second,
		UserAgent:     "promotores/1.0",
		AlertDuration: 5 * time.Second,
		ScanDelay:     500 * time.Millisecond,
		OutputDir:     ".",
		OutputFormat:  "csv",
		Parallelism:   4,
		BatchSize:     64,
		LogFile:       "",
		Verbose:       false,
	}
}

// Addr is the listen address of the catalog server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.DataFile) == "" {
		return fmt.Errorf("data file cannot be empty")
	}
	if c.HeaderRow < 0 {
		return fmt.Errorf("header row cannot be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("metrics path must start with /")
	}

	if c.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("server URL must include a host")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.AlertDuration <= 0 {
		return fmt.Errorf("alert duration must be positive")
	}
	if c.ScanDelay < 0 {
		return fmt.Errorf("scan delay cannot be negative")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}
