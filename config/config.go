// Package config loads the reportedit service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level reportedit configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	Browser BrowserConfig `yaml:"browser"`
	Editor  EditorConfig  `yaml:"editor"`
	Store   StoreConfig   `yaml:"store"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	CORS    CORSConfig    `yaml:"cors"`
	MCP     bool          `yaml:"mcp"`
}

// BrowserConfig controls the Chrome process hosting the sandbox.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headful          bool          `yaml:"headful"`
	Stealth          bool          `yaml:"stealth"`
	HealthInterval   time.Duration `yaml:"health_interval"`
	LoadTimeout      time.Duration `yaml:"load_timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// EditorConfig controls the edit session.
type EditorConfig struct {
	SettleDelay    time.Duration `yaml:"settle_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StoreConfig locates the published report store. An empty path disables
// the store.
type StoreConfig struct {
	Path       string `yaml:"path"`
	MaxHistory int    `yaml:"max_history"`
}

// SinkConfig defines an extra publish target.
type SinkConfig struct {
	Type        string        `yaml:"type"` // webhook | dir
	URL         string        `yaml:"url"`  // webhook
	Dir         string        `yaml:"dir"`  // dir
	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
	IncludeHTML bool          `yaml:"include_html"`
	Markdown    bool          `yaml:"markdown"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// LoadFile reads a YAML configuration file. REPORTEDIT_LISTEN overrides the
// listen address.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if v := os.Getenv("REPORTEDIT_LISTEN"); v != "" {
		c.Listen = v
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8090"
	}
	if c.Browser.HealthInterval <= 0 {
		c.Browser.HealthInterval = 30 * time.Second
	}
	if c.Browser.LoadTimeout <= 0 {
		c.Browser.LoadTimeout = 30 * time.Second
	}
	if c.Editor.SettleDelay <= 0 {
		c.Editor.SettleDelay = 300 * time.Millisecond
	}
	if c.Editor.RequestTimeout <= 0 {
		c.Editor.RequestTimeout = 60 * time.Second
	}
	if c.Store.MaxHistory <= 0 {
		c.Store.MaxHistory = 20
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Backoff <= 0 {
			c.Sinks[i].Backoff = 500 * time.Millisecond
		}
	}
}

func (c *Config) validate() error {
	for i, s := range c.Sinks {
		switch s.Type {
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs url", i)
			}
		case "dir":
			if s.Dir == "" {
				return fmt.Errorf("config: sinks[%d]: dir needs dir", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
