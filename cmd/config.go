package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ATMackay/keyscraper/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vrischmann/envconfig"
	yaml "gopkg.in/yaml.v3"
)

// flags holds the command line values. Config values are only overridden by
// flags the user actually set.
type flags struct {
	config string
	env    string

	scrape     bool
	test       bool
	maxPages   int
	proxy      string
	proxies    string
	baseURL    string
	noProgress bool

	search *string
	format string

	serve bool
	port  int

	output    string
	backend   string
	logLevel  string
	logFormat string
	logFile   string
}

// searchValue lets --search distinguish an empty prefix from an absent flag.
type searchValue struct{ f *flags }

func (s searchValue) String() string {
	if s.f.search == nil {
		return ""
	}
	return *s.f.search
}

func (s searchValue) Set(v string) error {
	s.f.search = &v
	return nil
}

func (searchValue) Type() string { return "prefix" }

func (f *flags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "config.yml", "path to config file")
	fs.StringVar(&f.env, "env-file", ".env", "path to dotenv file")

	fs.BoolVar(&f.scrape, "scrape", false, "scrape listing pages into the database")
	fs.BoolVar(&f.test, "test", false, "test mode, scrape at most 2 pages")
	fs.IntVar(&f.maxPages, "max-pages", 0, "maximum number of pages to scrape (0 = no limit)")
	fs.StringVar(&f.proxy, "proxy", "auto", "proxy selection: auto, none or a proxy URL")
	fs.StringVar(&f.proxies, "proxies", "", "comma-separated proxy list rotated in auto mode")
	fs.StringVar(&f.baseURL, "base-url", service.DefaultBaseURL, "listing base URL")
	fs.BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")

	fs.Var(searchValue{f}, "search", "search stored records by address prefix")
	fs.StringVar(&f.format, "format", "console", "search output format: console, csv or json")

	fs.BoolVar(&f.serve, "serve", false, "serve the search HTTP API")
	fs.IntVar(&f.port, "port", 8080, "HTTP API port")

	fs.StringVar(&f.output, "output", service.DefaultOutput, "database path")
	fs.StringVar(&f.backend, "backend", "csv", "database backend: csv or badger")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level")
	fs.StringVar(&f.logFormat, "log-format", "plain", "log format: plain or json")
	fs.StringVar(&f.logFile, "log-file", "", "also write logs to this file")
}

// apply copies every flag the user set onto cfg.
func (f *flags) apply(cfg *service.Config, fs *pflag.FlagSet) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("test", func() { cfg.Test = f.test })
	set("max-pages", func() { cfg.MaxPages = f.maxPages })
	set("proxy", func() { cfg.Proxy = f.proxy })
	set("proxies", func() { cfg.Proxies = f.proxies })
	set("base-url", func() { cfg.BaseURL = f.baseURL })
	set("no-progress", func() { cfg.NoProgress = f.noProgress })
	set("format", func() { cfg.Format = f.format })
	set("port", func() { cfg.Port = f.port })
	set("output", func() { cfg.Output = f.output })
	set("backend", func() { cfg.Backend = f.backend })
	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("log-format", func() { cfg.LogFormat = f.logFormat })
	set("log-file", func() { cfg.LogFile = f.logFile })
}

// loadConfig reads the YAML file, the dotenv file, environment variables
// and flags, each superseding the previous source.
func loadConfig(f *flags, fs *pflag.FlagSet) (*service.Config, error) {
	var cfg service.Config
	if err := godotenv.Load(f.env); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := parseYAMLConfig(f.config, &cfg, envPrefix); err != nil {
		return nil, err
	}
	f.apply(&cfg, fs)
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseYAMLConfig parse configuration file or environment variables, receiver must be a pointer
func parseYAMLConfig(configFile string, receiver any, prefix string) error {
	b, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if b != nil {
		if err := yaml.Unmarshal(b, receiver); err != nil {
			return err
		}
	}
	// environment variables supersede config yaml files
	if err := envconfig.InitWithOptions(receiver, envconfig.Options{Prefix: prefix, AllOptional: true}); err != nil {
		return err
	}
	return nil
}
