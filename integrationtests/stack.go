package integrationtests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ATMackay/keyscraper/fetcher"
	"github.com/ATMackay/keyscraper/internal/stack"
	"github.com/ATMackay/keyscraper/proxy"
	"github.com/ATMackay/keyscraper/scraper"
	"github.com/ATMackay/keyscraper/service"
	"github.com/ATMackay/keyscraper/store"
	"github.com/sirupsen/logrus"
)

//
// A fake listing site is scraped into a real store, which is then served by
// the search API. This covers every component end-to-end without network access.
//

const logLevel = "error" // change to 'info' or 'debug' to see the service logs

type svcStack struct {
	site    *stack.Site
	store   store.Store
	logger  *logrus.Entry
	service *service.Service
}

func makeScraperStack(t testing.TB, backend store.Backend, pages [][]store.Record) *svcStack {
	t.Helper()

	l, err := service.NewLogger(logLevel, "plain")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "keys")
	if backend == store.CSV {
		path += ".csv"
	}
	st, err := store.Open(backend, path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return &svcStack{
		site:   stack.NewSite(t, pages),
		store:  st,
		logger: l,
	}
}

// scrape runs one scraper pass against the fake site.
func (s *svcStack) scrape(t testing.TB, maxPages int, testMode bool) *scraper.Summary {
	t.Helper()

	pool, err := proxy.NewPool(string(proxy.None), "")
	if err != nil {
		t.Fatal(err)
	}
	f := fetcher.New(fetcher.Config{
		Timeout:    5 * time.Second,
		RetryLimit: 3,
		BaseDelay:  time.Millisecond,
	}, pool, s.logger)

	sc, err := scraper.New(scraper.Config{
		BaseURL:      s.site.BaseURL(),
		MaxPages:     maxPages,
		TestMode:     testMode,
		MinDelay:     time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		SaveInterval: 2,
	}, f, s.store, s.logger)
	if err != nil {
		t.Fatal(err)
	}

	sum, err := sc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return sum
}

// serve starts the search API on a free port.
func (s *svcStack) serve(t testing.TB) string {
	t.Helper()

	s.service = service.New(0, s.logger, s.store)
	if err := s.service.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.service.Stop(os.Kill) })

	return fmt.Sprintf("http://127.0.0.1:%d", s.service.Server().Port())
}
