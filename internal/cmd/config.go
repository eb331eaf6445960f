package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify foundry configuration",
	Long: `View or modify foundry configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  foundry config set council.deadline 5m
  foundry config set store.backend sqlite
  foundry config set logging.level debug

Valid keys:
  store.backend           - Project storage: file, sqlite, memory
  store.dir               - Directory for the file backend
  store.sqlite_path       - Database file for the sqlite backend
  store.cache_size        - Projects kept in the in-process LRU (0 disables)
  council.deadline        - Deadline for a whole council run (e.g. 10m)
  council.max_panel_size  - Maximum agents in a proposed panel
  council.decision_file   - YAML file with weights, thresholds and templates
  inference.command       - Model CLI invoked for every call
  inference.timeout       - Timeout for a single model call (e.g. 5m)
  inference.workdir       - Directory the model CLI runs in
  logging.enabled         - Write logs to the data directory (true/false)
  logging.level           - Minimum level: debug, info, warn, error
  logging.max_size_mb     - Log size before rotation
  logging.max_backups     - Rotated log files to keep
  logging.compress        - Gzip rotated logs (true/false)
  server.addr             - Listen address for 'foundry serve'
  server.debug            - Run the HTTP server in debug mode (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/foundry/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// configKeys maps each settable key to its value type.
var configKeys = map[string]string{
	"store.backend":          "string",
	"store.dir":              "string",
	"store.sqlite_path":      "string",
	"store.cache_size":       "int",
	"council.deadline":       "duration",
	"council.max_panel_size": "int",
	"council.decision_file":  "string",
	"inference.command":      "string",
	"inference.timeout":      "duration",
	"inference.workdir":      "string",
	"logging.enabled":        "bool",
	"logging.level":          "string",
	"logging.max_size_mb":    "int",
	"logging.max_backups":    "int",
	"logging.compress":       "bool",
	"server.addr":            "string",
	"server.debug":           "bool",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// parseConfigValue converts value to the type key expects.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'foundry config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 90s or 10m", key)
		}
		return d.String(), nil
	}

	switch key {
	case "store.backend":
		for _, b := range config.ValidStoreBackends() {
			if value == b {
				return value, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			key, value, strings.Join(config.ValidStoreBackends(), ", "))
	case "logging.level":
		if logging.ParseLevel(value) != strings.ToUpper(value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
		}
		return strings.ToLower(value), nil
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typedValue)

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# Foundry Configuration

# Where project records are stored
store:
  # Options: file (one JSON document per project), sqlite, memory
  backend: file
  # Directory for the file backend (default: {data_dir}/projects)
  # dir: ~/.local/share/foundry/projects
  # Database for the sqlite backend (default: {data_dir}/foundry.db)
  # sqlite_path: ~/.local/share/foundry/foundry.db
  # Projects kept in an in-process LRU cache (0 disables)
  cache_size: 128

# Concept evaluation
council:
  # Agents still running when the deadline fires are marked failed
  deadline: 10m
  # Maximum agents in a proposed panel
  max_panel_size: 8
  # Optional YAML overriding weights, thresholds, templates and the default panel
  # decision_file: ~/.config/foundry/decision.yaml

# The model CLI used for evaluations, narratives and phase artifacts.
# The prompt is written to stdin; the response is read from stdout.
inference:
  command: claude
  args: ["--print"]
  timeout: 5m
  # Directory the command runs in (default: the current directory)
  # workdir: ~/src

logging:
  enabled: true
  # debug, info, warn, error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false

# foundry serve
server:
  addr: 127.0.0.1:8420
  debug: false
  # Browser origins allowed to call the API ("*" for any)
  # cors_origins: ["http://localhost:3000"]
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'foundry config set' to modify values", configFile)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize foundry's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nData directory: %s\n", config.DataDir())
	fmt.Fprintln(out, "\nEnvironment variables: FOUNDRY_* (e.g., FOUNDRY_COUNCIL_DEADLINE)")
	return nil
}
