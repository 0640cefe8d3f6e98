// Package fetcher downloads listing pages with rotating user agents, optional
// proxies and retry with exponential backoff.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ATMackay/keyscraper/proxy"
	"github.com/cenkalti/backoff/v4"
	"github.com/corpix/uarand"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryLimit = 5
	defaultBaseDelay  = time.Second

	// ContentMarker must appear in every listing page.
	ContentMarker = "table table-striped"

	defaultMaxBodySize = 8 << 20
)

var (
	ErrBlocked        = errors.New("blocking detected")
	ErrMissingContent = errors.New("listing content missing")
	ErrStatus         = errors.New("unexpected http status")
	ErrBodyTooLarge   = errors.New("response body too large")
)

// BlockingIndicators are lower-case fragments of anti-bot and error pages.
var BlockingIndicators = []string{"cloudflare", "access denied", "captcha", "403 forbidden", "blocked", "security check"}

// Config controls request and retry behaviour.
type Config struct {
	Timeout            time.Duration
	RetryLimit         int           // total attempts per page
	BaseDelay          time.Duration // backoff unit, attempt n waits BaseDelay*2^n + jitter
	Referer            string
	Marker             string // required body fragment, ContentMarker when empty
	InsecureSkipVerify bool
	MaxBodySize        int64 // bytes, larger pages fail without retry
}

func (c *Config) sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = defaultRetryLimit
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.Marker == "" {
		c.Marker = ContentMarker
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = defaultMaxBodySize
	}
}

// Fetcher issues GET requests for listing pages.
type Fetcher struct {
	cfg       Config
	client    *http.Client
	pool      *proxy.Pool
	logger    *logrus.Entry
	userAgent func() string
}

// New returns a Fetcher using pool to pick the proxy for every attempt.
func New(cfg Config, pool *proxy.Pool, l *logrus.Entry) *Fetcher {
	cfg.sanitize()
	if pool == nil {
		pool, _ = proxy.NewPool(string(proxy.None), "")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy.FromRequest
	transport.MaxIdleConns = 50
	transport.MaxIdleConnsPerHost = 50
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in via config
	}

	return &Fetcher{
		cfg:       cfg,
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		pool:      pool,
		logger:    l,
		userAgent: uarand.GetRandom,
	}
}

// Fetch returns the body of url. Each failed attempt is retried until
// RetryLimit attempts have been made or ctx is done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	bo := newAttemptBackOff(f.cfg.BaseDelay)
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(f.cfg.RetryLimit-1)), ctx)

	var (
		body    string
		attempt int
	)
	op := func() error {
		attempt++
		b, err := f.attempt(ctx, url, bo)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			requestsTotal.WithLabelValues(resultLabel(err)).Inc()
			return err
		}
		requestsTotal.WithLabelValues("ok").Inc()
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		retriesTotal.Inc()
		f.logger.WithFields(logrus.Fields{
			"url":   url,
			"error": err,
		}).Warnf("attempt %d/%d failed, retrying in %.1fs", attempt, f.cfg.RetryLimit, wait.Seconds())
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", fmt.Errorf("fetch %s: giving up after %d attempts: %w", url, attempt, err)
	}
	return body, nil
}

func (f *Fetcher) attempt(ctx context.Context, url string, bo *attemptBackOff) (string, error) {
	pr := f.pool.Next()
	if pr != nil {
		f.logger.WithFields(logrus.Fields{"proxy": pr.String()}).Debug("using proxy")
	}

	req, err := http.NewRequestWithContext(proxy.WithProxy(ctx, pr), http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	f.setHeaders(req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > f.cfg.MaxBodySize {
		return "", backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.cfg.MaxBodySize))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			bo.hint(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
		}
		return "", fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	text := string(b)
	if ind := blockingIndicator(text); ind != "" {
		return "", fmt.Errorf("%w: page contains '%s'", ErrBlocked, ind)
	}
	if !strings.Contains(text, f.cfg.Marker) {
		return "", ErrMissingContent
	}

	f.pool.Promote(pr)
	return text, nil
}

func (f *Fetcher) setHeaders(h http.Header) {
	h.Set("User-Agent", f.userAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("DNT", "1")
	if f.cfg.Referer != "" {
		h.Set("Referer", f.cfg.Referer)
	}
}

func blockingIndicator(body string) string {
	lower := strings.ToLower(body)
	for _, ind := range BlockingIndicators {
		if strings.Contains(lower, ind) {
			return ind
		}
	}
	return ""
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrMissingContent):
		return "missing_content"
	case errors.Is(err, ErrStatus):
		return "http_error"
	case errors.Is(err, ErrBodyTooLarge):
		return "too_large"
	default:
		return "transport_error"
	}
}
