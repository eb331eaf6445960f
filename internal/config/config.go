package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete foundry configuration
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Council   CouncilConfig   `mapstructure:"council"`
	Inference InferenceConfig `mapstructure:"inference"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// StoreConfig selects where project records are persisted
type StoreConfig struct {
	// Backend is the storage implementation.
	// Options: "file" (one JSON document per project), "sqlite", "memory"
	Backend string `mapstructure:"backend"`
	// Dir is the directory for the file backend. Empty means {data_dir}/projects.
	Dir string `mapstructure:"dir"`
	// SQLitePath is the database file for the sqlite backend.
	// Empty means {data_dir}/foundry.db.
	SQLitePath string `mapstructure:"sqlite_path"`
	// CacheSize is the number of projects kept in an in-process LRU in front
	// of the backend. 0 disables the cache.
	CacheSize int `mapstructure:"cache_size"`
}

// CouncilConfig controls concept evaluation runs
type CouncilConfig struct {
	// Deadline bounds a whole council run. Agents still pending or running
	// when it fires are marked failed. (default: 10m)
	Deadline time.Duration `mapstructure:"deadline"`
	// MaxPanelSize caps the number of agents a proposed panel may contain. (default: 8)
	MaxPanelSize int `mapstructure:"max_panel_size"`
	// DecisionFile is an optional YAML file overriding the built-in decision
	// configuration (weights, thresholds, templates, default panel).
	DecisionFile string `mapstructure:"decision_file"`
}

// InferenceConfig controls the external model command used for evaluations,
// synthesis narratives and phase generation
type InferenceConfig struct {
	// Command is the executable invoked for each call. The prompt is written to stdin.
	Command string `mapstructure:"command"`
	// Args are passed to Command before any per-call arguments.
	Args []string `mapstructure:"args"`
	// Timeout bounds a single call. 0 disables the per-call timeout; the
	// council deadline still applies to evaluations. (default: 5m)
	Timeout time.Duration `mapstructure:"timeout"`
	// WorkDir is the directory the command runs in. Empty means the
	// current directory.
	WorkDir string `mapstructure:"workdir"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logs are written to {data_dir}/logs (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// ServerConfig controls `foundry serve`
type ServerConfig struct {
	// Addr is the listen address (default: "127.0.0.1:8420")
	Addr string `mapstructure:"addr"`
	// Debug runs gin in debug mode
	Debug bool `mapstructure:"debug"`
	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty disables CORS handling; "*" allows any origin.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   "file",
			CacheSize: 128,
		},
		Council: CouncilConfig{
			Deadline:     10 * time.Minute,
			MaxPanelSize: 8,
		},
		Inference: InferenceConfig{
			Command: "claude",
			Args:    []string{"--print"},
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.dir", defaults.Store.Dir)
	viper.SetDefault("store.sqlite_path", defaults.Store.SQLitePath)
	viper.SetDefault("store.cache_size", defaults.Store.CacheSize)

	// Council defaults
	viper.SetDefault("council.deadline", defaults.Council.Deadline)
	viper.SetDefault("council.max_panel_size", defaults.Council.MaxPanelSize)
	viper.SetDefault("council.decision_file", defaults.Council.DecisionFile)

	// Inference defaults
	viper.SetDefault("inference.command", defaults.Inference.Command)
	viper.SetDefault("inference.args", defaults.Inference.Args)
	viper.SetDefault("inference.timeout", defaults.Inference.Timeout)
	viper.SetDefault("inference.workdir", defaults.Inference.WorkDir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.debug", defaults.Server.Debug)
	viper.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "foundry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foundry"
	}
	return filepath.Join(home, ".config", "foundry")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the directory holding projects, the sqlite database and logs.
// FOUNDRY_DATA_DIR overrides the XDG location.
func DataDir() string {
	if dir := os.Getenv("FOUNDRY_DATA_DIR"); dir != "" {
		return expandHome(dir)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "foundry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foundry"
	}
	return filepath.Join(home, ".local", "share", "foundry")
}

// LogDir returns the directory log files are written to.
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}

// ResolveDir returns the project directory for the file backend.
func (s *StoreConfig) ResolveDir() string {
	if s.Dir == "" {
		return filepath.Join(DataDir(), "projects")
	}
	return expandHome(s.Dir)
}

// ResolveSQLitePath returns the database path for the sqlite backend.
func (s *StoreConfig) ResolveSQLitePath() string {
	if s.SQLitePath == "" {
		return filepath.Join(DataDir(), "foundry.db")
	}
	return expandHome(s.SQLitePath)
}

// ResolveWorkDir returns the working directory for the inference command.
func (c *InferenceConfig) ResolveWorkDir() string {
	return expandHome(c.WorkDir)
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// ValidStoreBackends returns the list of valid store.backend values
func ValidStoreBackends() []string {
	return []string{"file", "sqlite", "memory"}
}
