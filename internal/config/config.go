package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Crawler configuration
	Crawler CrawlerConfig `mapstructure:"crawler"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Report configuration
	Report ReportConfig `mapstructure:"report"`
}

// CrawlerConfig holds crawler-specific configuration
type CrawlerConfig struct {
	Workers            int           `mapstructure:"workers"`
	UserAgent          string        `mapstructure:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`
	ProbeCacheSize     int           `mapstructure:"probe_cache_size"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	Summarize          bool          `mapstructure:"summarize"`
	ExcludedExtensions []string      `mapstructure:"excluded_extensions"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Path     string `mapstructure:"path"`
	Manifest bool   `mapstructure:"manifest"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "text"
	OutputPath string `mapstructure:"output_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ReportConfig holds terminal report configuration
type ReportConfig struct {
	Format string `mapstructure:"format"` // "text", "json", "markdown" or "html"
}

// DefaultExcludedExtensions are link extensions never worth fetching as pages
var DefaultExcludedExtensions = []string{
	"png", "jpg", "jpeg", "gif", "bmp", "pdf", "css", "js",
	"zip", "rar", "exe", "svg", "ico", "onion",
}

// Load loads configuration from file and environment.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("levelcrawl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".levelcrawl"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("LEVELCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Crawler defaults
	v.SetDefault("crawler.workers", 16)
	v.SetDefault("crawler.user_agent", "levelcrawl/1.0")
	v.SetDefault("crawler.timeout", "30s")
	v.SetDefault("crawler.probe_timeout", "10s")
	v.SetDefault("crawler.probe_cache_size", 4096)
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)
	v.SetDefault("crawler.summarize", true)
	v.SetDefault("crawler.excluded_extensions", DefaultExcludedExtensions)

	// Storage defaults
	v.SetDefault("storage.path", ".")
	v.SetDefault("storage.manifest", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output_path", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("report.format", "text")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be positive")
	}
	if c.Crawler.Timeout < 0 || c.Crawler.ProbeTimeout < 0 {
		return fmt.Errorf("crawler timeouts must not be negative")
	}
	if c.Crawler.ProbeCacheSize <= 0 {
		return fmt.Errorf("crawler.probe_cache_size must be positive")
	}
	if c.Crawler.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawler.max_body_bytes must be positive")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	switch c.Report.Format {
	case "text", "json", "markdown", "html":
	default:
		return fmt.Errorf("report.format must be one of text, json, markdown, html, got %q", c.Report.Format)
	}
	return nil
}
