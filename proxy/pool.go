// Package proxy selects the outbound proxy used for each fetch attempt.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Mode is the proxy selection mode passed on the command line.
type Mode string

const (
	Auto  Mode = "auto"  // rotate through the configured list
	None  Mode = "none"  // direct connection
	Fixed Mode = "fixed" // single explicit proxy URL
)

var ErrInvalidProxy = errors.New("invalid proxy")

// Proxy is a pool entry handed out for one request attempt.
type Proxy struct {
	ID       string
	URL      *url.URL
	position int
}

// String returns the proxy URL with any password redacted.
func (p *Proxy) String() string {
	if p == nil || p.URL == nil {
		return "direct"
	}
	return p.URL.Redacted()
}

// item has an id so that when we promote a proxy we are sure the
// rotation order was not changed in between.
type item struct {
	id  string // id is the position in the configured list
	url *url.URL
}

// Pool hands out proxies in round-robin order. Proxies that succeed are
// moved one step towards the front of the rotation.
type Pool struct {
	mode   Mode
	nodes  []*item
	cursor int
	mu     sync.Mutex
}

// NewPool builds a pool from a selection ("auto", "none", "" or a proxy URL)
// and a comma-separated list of proxy URLs used by auto mode.
func NewPool(selection, list string) (*Pool, error) {
	selection = strings.TrimSpace(selection)
	switch Mode(strings.ToLower(selection)) {
	case "", None:
		return &Pool{mode: None}, nil
	case Auto:
		p := &Pool{mode: Auto}
		for _, raw := range strings.Split(list, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			u, err := Parse(raw)
			if err != nil {
				return nil, err
			}
			p.nodes = append(p.nodes, &item{id: fmt.Sprintf("%d", len(p.nodes)), url: u})
		}
		return p, nil
	default:
		u, err := Parse(selection)
		if err != nil {
			return nil, err
		}
		return &Pool{mode: Fixed, nodes: []*item{{id: "0", url: u}}}, nil
	}
}

// Parse validates a proxy URL. A bare host:port is treated as an http proxy.
func Parse(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme '%s'", ErrInvalidProxy, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in '%s'", ErrInvalidProxy, u.Redacted())
	}
	return u, nil
}

// Mode returns the selection mode.
func (p *Pool) Mode() Mode {
	return p.mode
}

// Len returns the number of proxies in rotation.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// Next returns the proxy for the next attempt, or nil for a direct connection.
func (p *Pool) Next() *Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.nodes) == 0 {
		return nil
	}
	pos := p.cursor % len(p.nodes)
	p.cursor = (pos + 1) % len(p.nodes)
	n := p.nodes[pos]
	return &Proxy{ID: n.id, URL: n.url, position: pos}
}

// Promote moves a proxy that served a request successfully one position
// towards the front of the rotation.
func (p *Pool) Promote(pr *Proxy) {
	if pr == nil || pr.position == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr.position >= len(p.nodes) || p.nodes[pr.position].id != pr.ID {
		return
	}
	p.nodes[pr.position-1], p.nodes[pr.position] = p.nodes[pr.position], p.nodes[pr.position-1]
}

// Order returns the redacted proxy URLs in current rotation order.
func (p *Pool) Order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n.url.Redacted())
	}
	return out
}

type proxyKey struct{}

// WithProxy attaches the proxy for a single request to ctx.
func WithProxy(ctx context.Context, pr *Proxy) context.Context {
	return context.WithValue(ctx, proxyKey{}, pr)
}

// FromRequest is an http.Transport Proxy func that reads the proxy attached
// by WithProxy. Requests without one connect directly.
func FromRequest(req *http.Request) (*url.URL, error) {
	pr, _ := req.Context().Value(proxyKey{}).(*Proxy)
	if pr == nil {
		return nil, nil
	}
	return pr.URL, nil
}
