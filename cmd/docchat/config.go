package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Default values from environment variables
var (
	defaultServer  = getEnvOrDefault("DOCCHAT_SERVER", "http://localhost:8000")
	defaultTimeout = getEnvDuration("DOCCHAT_TIMEOUT", 30*time.Second)
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Config holds all configuration from flags, the config file, and
// environment defaults
type Config struct {
	// Backend configuration
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`

	// Session configuration
	SessionID      string `yaml:"-"`
	UseLastSession bool   `yaml:"-"`
	NewSession     bool   `yaml:"-"`
	DocumentID     string `yaml:"-"`
	ListSessions   bool   `yaml:"-"`
	DeleteSession  string `yaml:"-"`
	ShowStats      bool   `yaml:"-"`
	HistoryCount   int    `yaml:"history"`

	// Document configuration
	Uploads       []string `yaml:"-"`
	IngestURL     string   `yaml:"-"`
	ListDocuments bool     `yaml:"-"`
	NoWait        bool     `yaml:"-"`

	// Input configuration
	Prompt     string `yaml:"-"`
	FocusStart int    `yaml:"-"`
	FocusEnd   int    `yaml:"-"`
	FocusText  string `yaml:"-"`

	// Output configuration
	Quiet bool `yaml:"quiet"`
	Debug bool `yaml:"debug"`

	// State directory, settable for tests; empty means ~/.docchat
	StateDir string `yaml:"state_dir"`
}

// parseConfig extracts configuration from command-line flags
func parseConfig(cmd *cli.Command) *Config {
	return &Config{
		Server:  cmd.String("server"),
		Timeout: cmd.Duration("timeout"),

		SessionID:      cmd.String("session"),
		UseLastSession: cmd.Bool("last"),
		NewSession:     cmd.Bool("new"),
		DocumentID:     cmd.String("document"),
		ListSessions:   cmd.Bool("list"),
		DeleteSession:  cmd.String("delete"),
		ShowStats:      cmd.Bool("stats"),
		HistoryCount:   int(cmd.Int("history")),

		Uploads:       cmd.StringSlice("upload"),
		IngestURL:     cmd.String("ingest-url"),
		ListDocuments: cmd.Bool("documents"),
		NoWait:        cmd.Bool("no-wait"),

		Prompt:     cmd.String("prompt"),
		FocusStart: int(cmd.Int("focus-start")),
		FocusEnd:   int(cmd.Int("focus-end")),
		FocusText:  cmd.String("focus-text"),

		Quiet: cmd.Bool("quiet"),
		Debug: cmd.Bool("debug"),
	}
}

// loadConfigFile reads ~/.docchat/config.yaml if present. A missing
// file is not an error; a malformed one is.
func loadConfigFile() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}
	path := filepath.Join(homeDir, ".docchat", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &config, nil
}

// resolveConfig layers flag values over the config file. Flags and env
// defaults win; the file only fills fields the flags left at zero.
func resolveConfig(cmd *cli.Command) (*Config, error) {
	config := parseConfig(cmd)

	fileConfig, err := loadConfigFile()
	if err != nil {
		return nil, err
	}
	if fileConfig != nil {
		// Explicit flags beat the file; file beats built-in defaults
		if !cmd.IsSet("server") && fileConfig.Server != "" {
			config.Server = ""
		}
		if !cmd.IsSet("timeout") && fileConfig.Timeout != 0 {
			config.Timeout = 0
		}
		if err := mergo.Merge(config, fileConfig); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	if config.Server == "" {
		config.Server = defaultServer
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return config, nil
}
