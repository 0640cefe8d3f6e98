// Package scraper walks a paginated key listing page by page and appends
// every extracted record to a store.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ATMackay/keyscraper/parser"
	"github.com/ATMackay/keyscraper/store"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

const (
	// TestModePages is the page limit applied by test mode.
	TestModePages = 2

	defaultSaveInterval  = 3
	defaultMaxEmptyPages = 3
)

// StopReason describes why a run ended.
type StopReason string

const (
	StopMaxPages    StopReason = "max_pages"
	StopTestMode    StopReason = "test_mode"
	StopLastPage    StopReason = "last_page"
	StopEmptyPages  StopReason = "empty_pages"
	StopFetchFailed StopReason = "fetch_failed"
	StopCancelled   StopReason = "cancelled"
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Config controls the page loop.
type Config struct {
	BaseURL       string
	MaxPages      int // 0 means no limit
	TestMode      bool
	MinDelay      time.Duration
	MaxDelay      time.Duration
	SaveInterval  int // flush buffered records every n pages
	MaxEmptyPages int // consecutive pages without records before stopping
	Progress      bool
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID    string
	Pages    int
	Records  int
	Stored   int
	Reason   StopReason
	FetchErr error // set when Reason is StopFetchFailed
}

// Scraper runs the fetch, parse, store loop.
type Scraper struct {
	cfg     Config
	fetcher Fetcher
	parser  *parser.Parser
	store   store.Store
	logger  *logrus.Entry

	sleep    func(ctx context.Context, d time.Duration) error
	progress io.Writer
}

// New returns a Scraper appending to st.
func New(cfg Config, f Fetcher, st store.Store, l *logrus.Entry) (*Scraper, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("scraper: empty base url")
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = defaultSaveInterval
	}
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = defaultMaxEmptyPages
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	p, err := parser.New(cfg.BaseURL, l)
	if err != nil {
		return nil, err
	}
	var w io.Writer = io.Discard
	if cfg.Progress {
		w = os.Stderr
	}
	return &Scraper{
		cfg:      cfg,
		fetcher:  f,
		parser:   p,
		store:    st,
		logger:   l,
		sleep:    sleepCtx,
		progress: w,
	}, nil
}

// Run scrapes pages until a stop condition is met. Buffered records are
// always flushed before returning, including after cancellation. The
// returned error is only set when records could not be stored.
func (s *Scraper) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	log := s.logger.WithFields(logrus.Fields{"runID": sum.RunID})
	log.WithFields(logrus.Fields{
		"baseURL":  s.cfg.BaseURL,
		"maxPages": s.cfg.MaxPages,
		"testMode": s.cfg.TestMode,
	}).Info("starting bitcoin private key scraping")

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription("Scraping pages"),
		progressbar.OptionSetItsString("page"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)

	var buf []store.Record
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		// the final flush must survive a cancelled run
		if err := s.store.Append(context.WithoutCancel(ctx), buf); err != nil {
			return fmt.Errorf("save %d records: %w", len(buf), err)
		}
		recordsStoredTotal.Add(float64(len(buf)))
		sum.Stored += len(buf)
		log.Debugf("saved %d records", len(buf))
		buf = nil
		return nil
	}

	page := 1
	empty := 0
	for {
		if s.cfg.MaxPages > 0 && page > s.cfg.MaxPages {
			log.Infof("reached max pages limit (%d)", s.cfg.MaxPages)
			sum.Reason = StopMaxPages
			break
		}
		if s.cfg.TestMode && page > TestModePages {
			log.Info("test mode complete")
			sum.Reason = StopTestMode
			break
		}

		if err := s.sleep(ctx, s.delay()); err != nil {
			log.Info("scraping interrupted")
			sum.Reason = StopCancelled
			break
		}

		pageURL := PageURL(s.cfg.BaseURL, page)
		html, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("scraping interrupted")
				sum.Reason = StopCancelled
				break
			}
			log.WithFields(logrus.Fields{"page": page, "error": err}).Errorf("failed to retrieve page %d", page)
			sum.Reason = StopFetchFailed
			sum.FetchErr = err
			break
		}
		sum.Pages++
		pagesTotal.Inc()

		parsed, err := s.parser.Parse(strings.NewReader(html))
		if err != nil {
			if !errors.Is(err, parser.ErrTableNotFound) {
				log.WithFields(logrus.Fields{"page": page, "error": err}).Error("failed to parse page")
				sum.Reason = StopFetchFailed
				sum.FetchErr = err
				break
			}
			log.WithFields(logrus.Fields{"page": page}).Error(err.Error())
		}

		if len(parsed.Records) == 0 {
			empty++
			log.WithFields(logrus.Fields{"page": page}).Info("no rows found on page")
			if empty >= s.cfg.MaxEmptyPages {
				log.Infof("%d consecutive empty pages, stopping", empty)
				sum.Reason = StopEmptyPages
				break
			}
		} else {
			empty = 0
			for i := range parsed.Records {
				parsed.Records[i].RunID = sum.RunID
			}
			buf = append(buf, parsed.Records...)
			sum.Records += len(parsed.Records)
			recordsParsedTotal.Add(float64(len(parsed.Records)))
		}

		if page%s.cfg.SaveInterval == 0 {
			// a failed flush keeps the buffer for the next attempt
			if err := flush(); err != nil {
				log.WithFields(logrus.Fields{"error": err}).Error("failed to save progress")
			}
		}

		_ = bar.Add(1)
		bar.Describe(fmt.Sprintf("Scraping pages (records=%d page=%d)", sum.Records, page))

		if !parsed.HasNext {
			log.Info("no more pages found")
			sum.Reason = StopLastPage
			break
		}
		page++
	}

	_ = bar.Finish()
	runsTotal.WithLabelValues(string(sum.Reason)).Inc()

	flushErr := flush()
	fields := logrus.Fields{
		"pages":   sum.Pages,
		"records": sum.Records,
		"stored":  sum.Stored,
		"reason":  sum.Reason,
	}
	if flushErr != nil {
		log.WithFields(fields).WithFields(logrus.Fields{"error": flushErr}).Error("scraping finished with unsaved records")
		return sum, flushErr
	}
	log.WithFields(fields).Infof("scraping complete, total records: %d", sum.Records)
	return sum, nil
}

// delay returns a random pause in [MinDelay, MaxDelay].
func (s *Scraper) delay() time.Duration {
	lo, hi := s.cfg.MinDelay, s.cfg.MaxDelay
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

// PageURL returns the listing URL of page n. The first page is the base URL itself.
func PageURL(base string, n int) string {
	if n <= 1 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?page=%d", base, n)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
