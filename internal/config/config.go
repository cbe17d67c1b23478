// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/elections-scraper/internal/election"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SiteConfig describes the results site being scraped.
type SiteConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	DomesticPattern string `mapstructure:"domestic_pattern"`
	AbroadPattern   string `mapstructure:"abroad_pattern"`
	VotePattern     string `mapstructure:"vote_pattern"`
}

// CrawlerConfig governs the worker pool and request politeness.
type CrawlerConfig struct {
	Concurrency  int     `mapstructure:"concurrency"`
	UserAgent    string  `mapstructure:"user_agent"`
	IgnoreRobots bool    `mapstructure:"ignore_robots"`
	DelayMs      int     `mapstructure:"delay_ms"`
	RatePerSec   float64 `mapstructure:"rate_per_second"`
	Burst        int     `mapstructure:"burst"`
	Mode         string  `mapstructure:"mode"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// ProgressConfig controls the terminal liveness indicator.
type ProgressConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	IntervalMs int  `mapstructure:"interval_ms"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig points at an optional node-exporter textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.volby.cz/pls/ps2017nss/")
	v.SetDefault("site.domestic_pattern", `^t\d+sa1 t\d+sb1$`)
	v.SetDefault("site.abroad_pattern", `^s\d+$`)
	v.SetDefault("site.vote_pattern", `^t\d+sa2 t\d+sb3$`)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.user_agent", "elections-scraper/0.1")
	v.SetDefault("crawler.ignore_robots", true)
	v.SetDefault("crawler.delay_ms", 0)
	v.SetDefault("crawler.rate_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.mode", string(election.ModeStrict))
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.interval_ms", 200)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil || !base.IsAbs() {
		return fmt.Errorf("site.base_url must be an absolute URL")
	}
	for name, pattern := range map[string]string{
		"site.domestic_pattern": c.Site.DomesticPattern,
		"site.abroad_pattern":   c.Site.AbroadPattern,
		"site.vote_pattern":     c.Site.VotePattern,
	} {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.RatePerSec < 0 {
		return fmt.Errorf("crawler.rate_per_second must be >= 0")
	}
	if _, ok := election.ParseFailureMode(c.Crawler.Mode); !ok {
		return fmt.Errorf("crawler.mode must be %q or %q", election.ModeStrict, election.ModePartial)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_initial_ms >= 0")
	}
	if c.Progress.Enabled && c.Progress.IntervalMs <= 0 {
		return fmt.Errorf("progress.interval_ms must be > 0 when progress is enabled")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryPolicy builds the retry policy described by the http section.
func (c Config) RetryPolicy() election.RetryPolicy {
	if c.HTTP.MaxRetries == 0 {
		return election.NoRetry{}
	}
	return election.NewExponentialRetryPolicy(
		c.HTTP.MaxRetries,
		time.Duration(c.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs)*time.Millisecond,
	)
}

// FailureMode returns the parsed crawler.mode.
func (c Config) FailureMode() election.FailureMode {
	mode, _ := election.ParseFailureMode(c.Crawler.Mode)
	return mode
}

// ProgressInterval converts the indicator cadence into a duration.
func (c Config) ProgressInterval() time.Duration {
	return time.Duration(c.Progress.IntervalMs) * time.Millisecond
}
