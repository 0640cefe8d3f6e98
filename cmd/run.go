package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ATMackay/keyscraper/fetcher"
	"github.com/ATMackay/keyscraper/proxy"
	"github.com/ATMackay/keyscraper/query"
	"github.com/ATMackay/keyscraper/scraper"
	"github.com/ATMackay/keyscraper/service"
	"github.com/ATMackay/keyscraper/store"
	"github.com/sirupsen/logrus"
)

// run executes the requested actions in order: scrape, search, serve.
func run(ctx context.Context, cfg *service.Config, f *flags) error {
	outputs := []io.Writer{os.Stderr}
	if cfg.LogFile != "" {
		lf, err := os.OpenFile(filepath.Clean(cfg.LogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		defer lf.Close()
		outputs = append(outputs, lf)
	}
	l, err := service.NewLogger(cfg.LogLevel, cfg.LogFormat, outputs...)
	if err != nil {
		return err
	}

	backend, _ := store.ParseBackend(cfg.Backend)

	if f.scrape {
		if err := scrape(ctx, cfg, backend, l); err != nil {
			l.WithFields(logrus.Fields{"error": err}).Error("scrape failed")
			return err
		}
	}
	if f.search != nil {
		if err := search(ctx, cfg, backend, *f.search, l); err != nil {
			l.WithFields(logrus.Fields{"error": err}).Error("search failed")
			return err
		}
	}
	if f.serve {
		if err := serve(ctx, cfg, backend, l); err != nil {
			l.WithFields(logrus.Fields{"error": err}).Error("serve failed")
			return err
		}
	}
	return nil
}

func scrape(ctx context.Context, cfg *service.Config, backend store.Backend, l *logrus.Entry) error {
	pool, err := proxy.NewPool(cfg.Proxy, cfg.Proxies)
	if err != nil {
		return err
	}
	l.WithFields(logrus.Fields{"mode": pool.Mode(), "proxies": pool.Len()}).Info("proxy pool ready")

	f := fetcher.New(fetcher.Config{
		Timeout:            cfg.Timeout,
		RetryLimit:         cfg.RetryLimit,
		Referer:            cfg.BaseURL,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, pool, l.WithField("component", "fetcher"))

	st, err := store.Open(backend, cfg.Output)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := scraper.New(scraper.Config{
		BaseURL:       cfg.BaseURL,
		MaxPages:      cfg.MaxPages,
		TestMode:      cfg.Test,
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
		SaveInterval:  cfg.SaveInterval,
		MaxEmptyPages: cfg.MaxEmptyPages,
		Progress:      !cfg.NoProgress,
	}, f, st, l.WithField("component", "scraper"))
	if err != nil {
		return err
	}

	sum, err := s.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "scraped %d pages, stored %d records in %s (run %s, stop: %s)\n",
		sum.Pages, sum.Stored, cfg.Output, sum.RunID, sum.Reason)
	return nil
}

func search(ctx context.Context, cfg *service.Config, backend store.Backend, prefix string, l *logrus.Entry) error {
	format, _ := query.ParseFormat(cfg.Format)

	st, err := store.OpenExisting(backend, cfg.Output)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%s: %w", cfg.Output, err)
		}
		return err
	}
	defer st.Close()

	res, err := query.New(st, l.WithField("component", "query")).Search(ctx, prefix, format)
	if err != nil {
		return err
	}
	if res.Count == 0 {
		fmt.Fprintf(os.Stdout, "no records found with address prefix '%s'\n", prefix)
	}
	return nil
}

func serve(ctx context.Context, cfg *service.Config, backend store.Backend, l *logrus.Entry) error {
	st, err := store.OpenForRead(backend, cfg.Output)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := service.New(cfg.Port, l, st)
	if err := srv.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Stop(os.Interrupt)
	return nil
}
