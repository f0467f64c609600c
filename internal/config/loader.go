package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Environment variables read directly by the loader.
const (
	ConfigPathEnv = "STORYFLOW_CONFIG_PATH"
	envPrefix     = "STORYFLOW"
)

// LocalConfigFile is the project-local config file name.
const LocalConfigFile = "storyflow.yaml"

// envBindings maps config keys to their explicit environment variables.
var envBindings = map[string]string{
	"ledger.path":        "STORYFLOW_LEDGER_PATH",
	"workflows.dir":      "STORYFLOW_WORKFLOWS_DIR",
	"workflows.manifest": "STORYFLOW_MANIFEST_PATH",
	"checkpoint.backend": "STORYFLOW_CHECKPOINT_BACKEND",
	"checkpoint.dir":     "STORYFLOW_CHECKPOINT_DIR",
	"log.level":          "STORYFLOW_LOG_LEVEL",
	"log.format":         "STORYFLOW_LOG_FORMAT",
}

// Loader loads [Config] values with Viper.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults and environment bindings applied.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key, env)
	}

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("ledger.path", cfg.Ledger.Path)
	v.SetDefault("workflows.dir", cfg.Workflows.Dir)
	v.SetDefault("workflows.manifest", cfg.Workflows.Manifest)
	v.SetDefault("checkpoint.backend", cfg.Checkpoint.Backend)
	v.SetDefault("checkpoint.dir", cfg.Checkpoint.Dir)
	v.SetDefault("checkpoint.sqlite_path", cfg.Checkpoint.SQLitePath)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("output.color", cfg.Output.Color)
}

// Load reads the first config file found in priority order and applies
// environment overrides. A missing config file is not an error; the defaults
// are used.
func (l *Loader) Load() (*Config, error) {
	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		return l.LoadFromFile(path)
	}
	return l.unmarshal()
}

// LoadFromFile reads the config file at path. The format follows the file
// extension.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	vars, err := readVariables(path)
	if err != nil {
		return nil, err
	}
	if vars != nil {
		cfg.Workflows.Variables = vars
	}
	return cfg, nil
}

// readVariables decodes workflows.variables straight from a YAML or JSON
// config file. Viper lowercases keys, and variable names are case-sensitive.
func readVariables(path string) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var raw struct {
		Workflows struct {
			Variables map[string]any `yaml:"variables"`
		} `yaml:"workflows"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error reading workflow variables: %w", err)
	}
	return raw.Workflows.Variables, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func findConfigFile() (string, error) {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p, nil
	}

	candidates := []string{}
	if p, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, LocalConfigFile)

	for _, p := range candidates {
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("error checking config file %s: %w", p, err)
		}
	}
	return "", nil
}

// MustLoad loads configuration and panics on error.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// ConfigDir returns the storyflow directory inside the user config directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, "storyflow"), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the user config directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return nil
}
