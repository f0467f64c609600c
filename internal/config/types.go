// Package config provides configuration loading and management for storyflow.
//
// Configuration is loaded using Viper, supporting YAML (or JSON) config files
// and environment variable overrides. The defaults work out of the box for a
// project with a STORIES.md ledger and workflow definitions under
// .storyflow/workflows.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//
// Configuration priority (highest to lowest):
//  1. Environment variables (STORYFLOW_ prefix)
//  2. Config file specified by STORYFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/storyflow/config.yaml
//     - macOS: ~/Library/Application Support/storyflow/config.yaml
//     - Windows: %APPDATA%\storyflow\config.yaml
//  4. ./storyflow.yaml
//  5. [DefaultConfig] defaults
package config

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Ledger locates the story ledger.
	Ledger LedgerConfig `mapstructure:"ledger"`

	// Workflows locates workflow definitions and the lifecycle manifest.
	Workflows WorkflowsConfig `mapstructure:"workflows"`

	// Checkpoint selects where workflow runs are persisted.
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`

	// Log configures structured logging.
	Log LogConfig `mapstructure:"log"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`
}

// LedgerConfig locates the story ledger.
type LedgerConfig struct {
	// Path is an explicit ledger path. When empty the ledger is discovered
	// (docs/STORIES.md, then STORIES.md).
	// Can be overridden with STORYFLOW_LEDGER_PATH environment variable.
	Path string `mapstructure:"path"`
}

// WorkflowsConfig locates workflow definitions.
type WorkflowsConfig struct {
	// Dir holds <name>.yaml workflow definitions.
	// Default: ".storyflow/workflows"
	Dir string `mapstructure:"dir"`

	// Manifest is an optional lifecycle manifest CSV. When empty, or when the
	// file does not exist, the built-in plan/start/finish chain is used.
	// Default: ".storyflow/lifecycle.csv"
	Manifest string `mapstructure:"manifest"`

	// Variables are seeded into every new run before its first step.
	Variables map[string]any `mapstructure:"variables"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	// Backend is "file" or "sqlite".
	// Default: "file"
	Backend string `mapstructure:"backend"`

	// Dir holds one JSON checkpoint per workflow for the file backend.
	// Default: ".storyflow/state"
	Dir string `mapstructure:"dir"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: ".storyflow/state.db"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	// Default: "text"
	Format string `mapstructure:"format"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// Color enables lipgloss styling. Disable for plain logs.
	// Default: true
	Color bool `mapstructure:"color"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workflows: WorkflowsConfig{
			Dir:      ".storyflow/workflows",
			Manifest: ".storyflow/lifecycle.csv",
		},
		Checkpoint: CheckpointConfig{
			Backend:    "file",
			Dir:        ".storyflow/state",
			SQLitePath: ".storyflow/state.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}
