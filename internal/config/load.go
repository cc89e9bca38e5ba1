package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ranklab/config.yaml",
	"/etc/ranklab/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "RANKLAB_CONFIG_PATH"

const envPrefix = "RANKLAB_"

// Load builds the configuration from defaults, the config file at path
// (or the first default path found when path is empty), and environment
// variables. A .env file in the working directory is loaded first so env
// overrides work the same in containers and local runs.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps RANKLAB_-prefixed variable names (lowercased, prefix
// stripped) to config paths. Keys with embedded underscores cannot be
// derived mechanically, so the table is explicit.
var envMappings = map[string]string{
	"server_host":             "server.host",
	"server_port":             "server.port",
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",

	"clickhouse_dsn": "clickhouse.dsn",
	"postgres_dsn":   "postgres.dsn",

	"log_level":  "logging.level",
	"log_format": "logging.format",

	"evaluation_k":                        "evaluation.k",
	"evaluation_mode":                     "evaluation.mode",
	"evaluation_min_sessions":             "evaluation.min_sessions",
	"evaluation_opportunity_min_sessions": "evaluation.opportunity_min_sessions",
	"evaluation_uplift_factor":            "evaluation.uplift_factor",
	"evaluation_targets":                  "evaluation.targets",
	"evaluation_days_back":                "evaluation.days_back",
	"evaluation_trend_days_back":          "evaluation.trend_days_back",

	"ingest_batch_size": "ingest.batch_size",
}

// envTransform resolves an environment variable name to its config path.
// Unmapped variables return empty and are skipped, so unrelated RANKLAB_
// variables cannot pollute the configuration.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
