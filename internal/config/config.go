// Package config defines the Parley configuration, loaded through viper with
// defaults, file overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete Parley configuration.
type Config struct {
	Conversation ConversationConfig `mapstructure:"conversation"`
	Runtime      RuntimeConfig      `mapstructure:"runtime"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Actions      ActionsConfig      `mapstructure:"actions"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Paths        PathsConfig        `mapstructure:"paths"`
}

// ConversationConfig controls orchestration behavior.
type ConversationConfig struct {
	// Strategy is the coordination strategy id.
	// Options: "sequential-turn", "critic-reviewer"
	Strategy string `mapstructure:"strategy"`
	// Reviewer is the agent id used to review corrections when the original
	// responder is unavailable.
	Reviewer string `mapstructure:"reviewer"`
	// TraceCapacity bounds the in-memory trace buffer.
	TraceCapacity int `mapstructure:"trace_capacity"`
}

// RuntimeConfig controls the local inference runtime connection.
type RuntimeConfig struct {
	// URL is the http(s) base URL of the local runtime.
	URL string `mapstructure:"url"`
	// Stream enables incremental streaming replies from the runtime.
	Stream bool `mapstructure:"stream"`
}

// ProvidersConfig holds per-provider credentials. Keys are provider names;
// values are the stored credentials. Environment variables of the form
// PARLEY_PROVIDERS_CREDENTIALS_<PROVIDER> override file entries.
type ProvidersConfig struct {
	Credentials map[string]string `mapstructure:"credentials"`
}

// ActionsConfig controls the suggested-action work queue.
type ActionsConfig struct {
	// PathAllowlist restricts open/read actions to matching paths.
	// Glob patterns with '/' separators; empty permits everything.
	PathAllowlist []string `mapstructure:"path_allowlist"`
}

// LoggingConfig controls the debug log.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
}

// PathsConfig controls where conversation state lives.
type PathsConfig struct {
	// StateDir is the directory for persisted conversation state. Empty
	// means {ConfigDir}/state.
	StateDir string `mapstructure:"state_dir"`
	// RolesFile is the YAML file assigning roles and objectives to agents.
	RolesFile string `mapstructure:"roles_file"`
	// AgentsFile is the YAML file defining the agent roster.
	AgentsFile string `mapstructure:"agents_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Conversation: ConversationConfig{
			Strategy:      "sequential-turn",
			Reviewer:      "",
			TraceCapacity: 1000,
		},
		Runtime: RuntimeConfig{
			URL:    "http://127.0.0.1:8791",
			Stream: true,
		},
		Providers: ProvidersConfig{
			Credentials: map[string]string{},
		},
		Actions: ActionsConfig{
			PathAllowlist: []string{},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("conversation.strategy", defaults.Conversation.Strategy)
	viper.SetDefault("conversation.reviewer", defaults.Conversation.Reviewer)
	viper.SetDefault("conversation.trace_capacity", defaults.Conversation.TraceCapacity)

	viper.SetDefault("runtime.url", defaults.Runtime.URL)
	viper.SetDefault("runtime.stream", defaults.Runtime.Stream)

	viper.SetDefault("providers.credentials", defaults.Providers.Credentials)

	viper.SetDefault("actions.path_allowlist", defaults.Actions.PathAllowlist)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
	viper.SetDefault("paths.roles_file", defaults.Paths.RolesFile)
	viper.SetDefault("paths.agents_file", defaults.Paths.AgentsFile)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Conversation.Strategy {
	case "sequential-turn", "critic-reviewer":
	default:
		return fmt.Errorf("invalid conversation.strategy %q", c.Conversation.Strategy)
	}
	if c.Conversation.TraceCapacity < 0 {
		return fmt.Errorf("conversation.trace_capacity must not be negative")
	}
	return nil
}

// StateDir resolves the state directory, falling back to the config dir.
func (c *Config) StateDir() string {
	if c.Paths.StateDir != "" {
		return c.Paths.StateDir
	}
	return filepath.Join(ConfigDir(), "state")
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".config", "parley")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
