package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envNames keeps the variable names of existing deployments; every
// other key is read from PROMOTORES_<KEY>.
var envNames = map[string]string{
	"port":       "PORT",
	"data_file":  "DATA_FILE",
	"sheet_name": "SHEET_NAME",
	"header_row": "HEADER_ROW",
}

// Load reads .env (if present), the optional YAML file at path and the
// environment on top of DefaultConfig. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaultsMap(DefaultConfig()) {
		v.SetDefault(key, value)
		env, ok := envNames[key]
		if !ok {
			env = "PROMOTORES_" + strings.ToUpper(key)
		}
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.SheetName = strings.TrimSpace(cfg.SheetName)
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return &cfg, nil
}

func defaultsMap(c *Config) map[string]any {
	return map[string]any{
		"port":           c.Port,
		"host":           c.Host,
		"data_file":      c.DataFile,
		"sheet_name":     c.SheetName,
		"header_row":     c.HeaderRow,
		"cache_size":     c.CacheSize,
		"watch_data":     c.WatchData,
		"metrics_path":   c.MetricsPath,
		"server_url":     c.ServerURL,
		"timeout":        c.Timeout,
		"user_agent":     c.UserAgent,
		"alert_duration": c.AlertDuration,
		"scan_delay":     c.ScanDelay,
		"output_dir":     c.OutputDir,
		"output_format":  c.OutputFormat,
		"parallelism":    c.Parallelism,
		"batch_size":     c.BatchSize,
		"log_file":       c.LogFile,
		"verbose":        c.Verbose,
	}
}
