package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in command context.
type loggerKey struct{}

// configCtxKey is used to store the loaded config in command context.
type configCtxKey struct{}

// Package-level koanf instance and config file tracking.
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile finds the config file to use.
// Priority: explicit path > tabq.yaml > tabq.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"tabq.yaml", "tabq.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config file
// > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for a fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"app_title":        DefaultAppTitle,
		"dataset_path":     DefaultDatasetPath,
		"output":           DefaultOutput,
		"max_render_rows":  DefaultMaxRenderRows,
		"subset_rows":      DefaultSubsetRows,
		"max_history_user": DefaultHistory,
		"max_history_bot":  DefaultHistory,
		"verbose":          false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (TABQ_ prefix)
	// Transform: TABQ_DATASET_PATH -> dataset_path
	if err := k.Load(env.Provider("TABQ_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "TABQ_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if
// any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger. It lets
// the commands package retrieve the logger from context without an
// import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// ConfigKey returns the context key used for storing the loaded config.
func ConfigKey() interface{} {
	return configCtxKey{}
}

// FromContext retrieves the config from the command context, falling
// back to defaults when none was stored.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configCtxKey{}).(*Config); ok {
		return c
	}
	return &Config{
		AppTitle:      DefaultAppTitle,
		DatasetPath:   DefaultDatasetPath,
		OutputFormat:  DefaultOutput,
		MaxRenderRows: DefaultMaxRenderRows,
		SubsetRows:    DefaultSubsetRows,
		HistoryUser:   DefaultHistory,
		HistoryBot:    DefaultHistory,
	}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Discard logger as safe fallback
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
