package service

import (
	"fmt"
	"time"

	"github.com/ATMackay/keyscraper/query"
	"github.com/ATMackay/keyscraper/store"
)

const (
	defaultPort      = 8080
	defaultLogLevel  = "info"
	defaultLogFormat = "plain"

	DefaultBaseURL       = "https://privatekeyfinder.io/private-keys/bitcoin/"
	DefaultOutput        = "bitcoin_keys.csv"
	defaultProxy         = "auto"
	defaultMinDelay      = 3 * time.Second
	defaultMaxDelay      = 7 * time.Second
	defaultTimeout       = 30 * time.Second
	defaultRetryLimit    = 5
	defaultSaveInterval  = 3
	defaultMaxEmptyPages = 3
)

// Config represents the application configuration struct. It is read from
// YAML, then environment variables, then command line flags.
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"loglevel"`
	LogFormat string `yaml:"logformat"`
	LogFile   string `yaml:"logfile"` // optional, logs are also written here

	// scraping
	BaseURL            string        `yaml:"base_url"`
	MaxPages           int           `yaml:"max_pages"`
	Test               bool          `yaml:"test"`
	Proxy              string        `yaml:"proxy"`   // auto, none or a proxy URL
	Proxies            string        `yaml:"proxies"` // comma-separated list rotated in auto mode
	MinDelay           time.Duration `yaml:"min_delay"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	Timeout            time.Duration `yaml:"timeout"`
	RetryLimit         int           `yaml:"retry_limit"`
	SaveInterval       int           `yaml:"save_interval"`
	MaxEmptyPages      int           `yaml:"max_empty_pages"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	NoProgress         bool          `yaml:"no_progress"`

	// storage and search
	Output  string `yaml:"output"`
	Backend string `yaml:"backend"`
	Format  string `yaml:"format"`
}

// Sanitize will support a lazy user by ensuring that empty config file
// fields are replaced with default values.
func (c *Config) Sanitize() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Proxy == "" {
		c.Proxy = defaultProxy
	}
	if c.MinDelay == 0 {
		c.MinDelay = defaultMinDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryLimit == 0 {
		c.RetryLimit = defaultRetryLimit
	}
	if c.SaveInterval == 0 {
		c.SaveInterval = defaultSaveInterval
	}
	if c.MaxEmptyPages == 0 {
		c.MaxEmptyPages = defaultMaxEmptyPages
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Backend == "" {
		c.Backend = string(store.CSV)
	}
	if c.Format == "" {
		c.Format = string(query.Console)
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("invalid max_pages %d", c.MaxPages)
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.RetryLimit < 0 || c.SaveInterval < 0 || c.MaxEmptyPages < 0 {
		return fmt.Errorf("retry_limit, save_interval and max_empty_pages must not be negative")
	}
	if _, err := store.ParseBackend(c.Backend); err != nil {
		return err
	}
	if _, err := query.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}
