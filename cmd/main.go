package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ATMackay/keyscraper/service"
	"github.com/spf13/cobra"
)

const envPrefix = "KEYSCRAPER"

const examples = `  keyscraper --scrape --max-pages 10
  keyscraper --scrape --test
  keyscraper --scrape --proxy none
  keyscraper --search 1A1z
  keyscraper --search bc1q --format json
  keyscraper --serve --port 8080`

// RUN WITH PLAINTEXT CONFIG
// $ go run ./cmd --config ./config.yml --scrape
//
// OR RUN WITH ENVIRONMENT VARIABLES (a .env file is also read)
//
// $ export KEYSCRAPER_MAX_PAGES=5
// $ export KEYSCRAPER_PROXIES=http://10.0.0.1:3128,socks5://10.0.0.2:1080
// $ ./keyscraper --scrape

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:     "keyscraper",
		Short:   "Bitcoin private key page scraper",
		Long:    "Scrapes address/private key listing pages into a local database and searches it by address prefix.",
		Example: examples,
		Version: service.FullVersion,
		Args:    cobra.NoArgs,

		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !f.scrape && f.search == nil && !f.serve {
				return cmd.Help()
			}
			cfg, err := loadConfig(f, cmd.Flags())
			if err != nil {
				return fmt.Errorf("error parsing config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, f)
		},
	}
	f.register(cmd)
	return cmd
}
