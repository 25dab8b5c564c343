// Package config loads the pagelens server configuration from YAML,
// overlaying user values on top of defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the pagelens MCP server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
}

type ServerConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// BrowserConfig configures how the singleton Chrome session is attached or
// launched, and how the page-reading tools behave.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Optional when
	// launch is set.
	DebuggerURL string `yaml:"debugger_url"`
	// Launch command used to start Chrome when no debugger_url is given
	// (e.g., ["chromium", "--no-sandbox"]). First element is the binary.
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs headless (default: true).
	Headless *bool `yaml:"headless"`
	// Stealth creates the page through go-rod/stealth to reduce bot
	// detection on public sites.
	Stealth bool `yaml:"stealth"`
	// Viewport dimensions for the session page.
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
	// Bounded post-navigation settle wait (e.g., "5s"). Timing out is
	// advisory, never an error.
	SettleTimeout string `yaml:"settle_timeout"`
	// SearchURL is the query-string prefix the search tool appends the
	// percent-encoded text to.
	SearchURL string `yaml:"search_url"`
	// MarkdownMode selects the markdown tool rendering: "outline" (semantic
	// distillation with element ids and geometry) or "article"
	// (html-to-markdown conversion).
	MarkdownMode string `yaml:"markdown_mode"`
}

const (
	MarkdownOutline = "outline"
	MarkdownArticle = "article"
)

// DefaultConfig provides reasonable defaults for local use.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:     "pagelens-mcp",
			Version:  "0.2.0",
			LogLevel: "info",
		},
		Browser: BrowserConfig{
			Launch:         []string{"chromium"},
			ViewportWidth:  1280,
			ViewportHeight: 800,
			SettleTimeout:  "5s",
			SearchURL:      "https://duckduckgo.com/html/?q=",
			MarkdownMode:   MarkdownOutline,
		},
	}
}

// Load reads YAML config from disk and overlays defaults. A missing file is
// not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start
// deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
		return errors.New("browser.debugger_url or browser.launch must be provided")
	}
	switch c.Browser.MarkdownMode {
	case MarkdownOutline, MarkdownArticle:
	default:
		return fmt.Errorf("browser.markdown_mode must be %q or %q", MarkdownOutline, MarkdownArticle)
	}
	if c.Browser.SearchURL == "" {
		return errors.New("browser.search_url is required")
	}
	return nil
}

// SettleWait returns the parsed settle timeout with a sane default.
func (b BrowserConfig) SettleWait() time.Duration {
	if b.SettleTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(b.SettleTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 800
	}
	return b.ViewportHeight
}
