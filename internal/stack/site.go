package stack

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ATMackay/keyscraper/store"
)

//
// Site is an in-memory paginated key listing served over httptest. It lets
// the scraper, fetcher and parser be exercised end-to-end without network access.
//

const ListingPath = "/private-keys/bitcoin/"

// BlockedBody is served by a Fault to imitate an anti-bot interstitial.
const BlockedBody = `<html><head><title>Just a moment...</title></head><body>Checking your browser. Cloudflare security check.</body></html>`

// Fault replaces one response for a page.
type Fault struct {
	Status     int
	Body       string
	RetryAfter string
}

type Site struct {
	*httptest.Server

	mu         sync.Mutex
	pages      [][]store.Record
	faults     map[int][]Fault
	hits       map[int]int
	userAgents []string
	headers    []http.Header
}

// NewSite starts a listing with one entry per page. The server is closed on test cleanup.
func NewSite(t testing.TB, pages [][]store.Record) *Site {
	s := &Site{
		pages:  pages,
		faults: make(map[int][]Fault),
		hits:   make(map[int]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the first listing page.
func (s *Site) BaseURL() string {
	return s.Server.URL + ListingPath
}

// Inject queues faults returned, in order, before page is served normally.
func (s *Site) Inject(page int, faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[page] = append(s.faults[page], faults...)
}

// Hits returns the number of requests received for page.
func (s *Site) Hits(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[page]
}

// TotalHits returns the number of requests received for all pages.
func (s *Site) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, h := range s.hits {
		n += h
	}
	return n
}

// UserAgents returns the User-Agent header of every request in arrival order.
func (s *Site) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

// LastHeaders returns the headers of the most recent request.
func (s *Site) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

func (s *Site) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ListingPath {
		http.NotFound(w, r)
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		page = n
	}

	s.mu.Lock()
	s.hits[page]++
	s.userAgents = append(s.userAgents, r.UserAgent())
	s.headers = append(s.headers, r.Header.Clone())
	var fault *Fault
	if q := s.faults[page]; len(q) > 0 {
		fault = &q[0]
		s.faults[page] = q[1:]
	}
	var records []store.Record
	if page <= len(s.pages) {
		records = s.pages[page-1]
	}
	hasNext := page < len(s.pages)
	s.mu.Unlock()

	if fault != nil {
		if fault.RetryAfter != "" {
			w.Header().Set("Retry-After", fault.RetryAfter)
		}
		status := fault.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(fault.Body))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(RenderPage(records, page, hasNext)))
}

// RenderPage renders a listing page in the layout the parser expects.
func RenderPage(records []store.Record, page int, hasNext bool) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Bitcoin private keys</title></head><body>\n")
	b.WriteString(`<table class="table table-striped">` + "\n")
	b.WriteString("<thead><tr><th>#</th><th>Address</th><th>Balance</th><th>Private key</th><th></th></tr></thead>\n<tbody>\n")
	for _, r := range records {
		fmt.Fprintf(&b, "<tr><td>%s</td><td> %s </td><td>%s</td><td>%s</td><td><a href=\"/bitcoin/address/%s\">details</a></td></tr>\n",
			html.EscapeString(r.Index),
			html.EscapeString(r.Address),
			html.EscapeString(r.Balance),
			html.EscapeString(r.PrivateKey),
			html.EscapeString(r.Address),
		)
	}
	b.WriteString("</tbody></table>\n<nav>")
	if page > 1 {
		fmt.Fprintf(&b, `<a rel="prev" href="?page=%d">previous</a>`, page-1)
	}
	if hasNext {
		fmt.Fprintf(&b, `<a rel="next" href="?page=%d">next</a>`, page+1)
	}
	b.WriteString("</nav></body></html>\n")
	return b.String()
}
