// Package config provides configuration management for the crawler.
// It defines the crawl configuration, its default values and validation.
package config

import (
	"net/url"
	"strings"
	"time"
)

// Crawl scopes limiting which discovered links enter the frontier
const (
	ScopeAny    = "any"    // follow links to any host
	ScopeHost   = "host"   // stay on the seed's scheme and host
	ScopeDomain = "domain" // stay on the seed's registrable domain (eTLD+1)
)

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	File   string `mapstructure:"file" yaml:"file"`     // Optional log file, rotated by size
	Format string `mapstructure:"format" yaml:"format"` // json or text
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Focused crawl parameters
	StartURL  string `mapstructure:"start_url" yaml:"start_url"`   // Seed URL for the crawl
	Query     string `mapstructure:"query" yaml:"query"`           // Relevance query, may be empty
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"` // Directory receiving fetched pages
	MaxPages  int    `mapstructure:"max_pages" yaml:"max_pages"`   // Page budget
	Trace     bool   `mapstructure:"trace" yaml:"trace"`           // Emit queue and download trace at debug level

	// HTTP behaviour
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // HTTP request timeout
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum delay between requests to one host

	// Crawl policy
	IgnoreRobots       bool   `mapstructure:"ignore_robots" yaml:"ignore_robots"`               // Skip robots.txt checks
	Scope              string `mapstructure:"scope" yaml:"scope"`                               // any, host or domain
	LenientContentType bool   `mapstructure:"lenient_content_type" yaml:"lenient_content_type"` // Accept any text/html charset

	// Crawl journal; empty disables it
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		OutputDir:      "docs",
		MaxPages:       50,
		UserAgent:      "FocusCrawl/1.0",
		RequestTimeout: 30 * time.Second,
		RequestDelay:   0,
		Scope:          ScopeAny,
		DatabasePath:   "./focuscrawl.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}

	u, err := url.Parse(c.StartURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidStartURL
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return ErrInvalidStartURL
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RequestDelay < 0 {
		c.RequestDelay = 0
	}

	switch strings.ToLower(c.Scope) {
	case "":
		c.Scope = ScopeAny
	case ScopeAny, ScopeHost, ScopeDomain:
		c.Scope = strings.ToLower(c.Scope)
	default:
		return ErrInvalidScope
	}

	return nil
}

// LogLevel returns the effective log level name. Trace forces debug output.
func (c *CrawlConfig) LogLevel() string {
	if c.Trace {
		return "debug"
	}
	return c.Log.Level
}
