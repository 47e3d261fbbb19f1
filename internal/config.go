package internal

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Store StoreConfig       `yaml:"store"`
	Index IndexConfig       `yaml:"index"`
	MCP   MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.MCP.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StoreConfig holds the path to the record store directory.
type StoreConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// IndexConfig holds the SQLite mirror configuration. An empty Path disables
// the mirror, and with it search. Throttle bounds how often a
// collection.changed notification is sent per collection.
type IndexConfig struct {
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Throttle time.Duration `yaml:"throttle"`
}

// Enabled reports whether the SQLite mirror is configured.
func (c *IndexConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Watch, validation.Required.Error("is required when watch is on"))),
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Name string `yaml:"name"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Store: StoreConfig{
			Root: "./data",
		},
		Index: IndexConfig{
			Throttle: 2 * time.Second,
		},
		MCP: MCPConfig{
			Name: "Siena",
		},
	}
}
