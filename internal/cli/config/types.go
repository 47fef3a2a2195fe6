// Package config provides configuration management for the tabq CLI.
//
// Values come from, in rising precedence, built-in defaults, a tabq.yaml
// config file, TABQ_-prefixed environment variables, and command-line
// flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	AppTitle      string `koanf:"app_title"`
	DatasetPath   string `koanf:"dataset_path"`
	OutputFormat  string `koanf:"output"`
	MaxRenderRows int    `koanf:"max_render_rows"`
	SubsetRows    int    `koanf:"subset_rows"`
	HistoryUser   int    `koanf:"max_history_user"`
	HistoryBot    int    `koanf:"max_history_bot"`
	Verbose       bool   `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultAppTitle      = "tabq - marketing data explorer"
	DefaultDatasetPath   = "marketing_data.csv"
	DefaultOutput        = "table"
	DefaultMaxRenderRows = 20
	DefaultSubsetRows    = 5
	DefaultHistory       = 5
)
