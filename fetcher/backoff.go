package fetcher

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxRetryAfter = 2 * time.Minute

var _ backoff.BackOff = (*attemptBackOff)(nil)

// attemptBackOff waits base*2^n plus up to base of jitter after the nth
// failed attempt. A Retry-After hint from the server wins when it is longer.
type attemptBackOff struct {
	base       time.Duration
	attempt    int
	retryAfter time.Duration
	rand       func() float64
}

func newAttemptBackOff(base time.Duration) *attemptBackOff {
	return &attemptBackOff{base: base, rand: rand.Float64}
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	wait := b.base<<b.attempt + time.Duration(b.rand()*float64(b.base))
	b.attempt++
	if b.retryAfter > wait {
		wait = b.retryAfter
	}
	b.retryAfter = 0
	return wait
}

func (b *attemptBackOff) Reset() {
	b.attempt = 0
	b.retryAfter = 0
}

// hint records a server supplied delay for the next wait.
func (b *attemptBackOff) hint(d time.Duration) {
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	b.retryAfter = d
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
