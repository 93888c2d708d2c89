package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Config holds all actis CLI configuration.
// Priority: env vars > actis.json > defaults.
type Config struct {
	Strategy    string   `json:"strategy"`
	Scan        []string `json:"scan"`
	Registry    string   `json:"registry"`
	Output      string   `json:"output"`
	Listen      string   `json:"listen"`
	DB          string   `json:"db"`
	ResolverURL string   `json:"resolverUrl"`
	LogLevel    string   `json:"logLevel"`
}

func defaultConfig() Config {
	return Config{
		Strategy: "annotation",
		Scan:     []string{"./..."},
		Registry: "actions/registry.go",
		Output:   "actisgen",
		Listen:   ":8080",
		DB:       "actis.db",
		LogLevel: "info",
	}
}

// loadConfig reads root/actis.json over the defaults and applies ACTIS_*
// env overrides on top. A missing config file is not an error.
func loadConfig(root string) Config {
	cfg := defaultConfig()

	if data, err := os.ReadFile(filepath.Join(root, "actis.json")); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("ACTIS_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if v := os.Getenv("ACTIS_SCAN"); v != "" {
		cfg.Scan = splitList(v)
	}
	if v := os.Getenv("ACTIS_REGISTRY"); v != "" {
		cfg.Registry = v
	}
	if v := os.Getenv("ACTIS_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("ACTIS_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("ACTIS_DB"); v != "" {
		cfg.DB = v
	}
	if v := os.Getenv("ACTIS_RESOLVER_URL"); v != "" {
		cfg.ResolverURL = v
	}
	if v := os.Getenv("ACTIS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if len(cfg.Scan) == 0 {
		cfg.Scan = []string{"./..."}
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dbPath resolves the configured database path against the project root.
func (c Config) dbPath(root string) string {
	if filepath.IsAbs(c.DB) {
		return c.DB
	}
	return filepath.Join(root, c.DB)
}
