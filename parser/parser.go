// Package parser extracts address/key records from listing pages.
package parser

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ATMackay/keyscraper/keys"
	"github.com/ATMackay/keyscraper/store"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const (
	tableSelector = "table.table-striped"
	nextSelector  = `a[rel="next"]`

	// listing columns
	colIndex   = 0
	colAddress = 1
	colBalance = 2
	colKey     = 3
	colDetails = 4
	minColumns = 5
)

var ErrTableNotFound = errors.New("listing table not found, site structure may have changed")

// Page is the parsed content of one listing page.
type Page struct {
	Records []store.Record
	HasNext bool
	Skipped int // rows dropped for a malformed address or missing columns
}

// Parser turns listing HTML into Records.
type Parser struct {
	base   *url.URL
	logger *logrus.Entry
	now    func() time.Time
}

// New returns a Parser resolving detail links against baseURL.
func New(baseURL string, l *logrus.Entry) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Parser{base: u, logger: l, now: time.Now}, nil
}

// Parse reads one listing page. A page without the listing table returns
// ErrTableNotFound together with the next-page flag.
func (p *Parser) Parse(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{HasNext: hasNext(doc)}

	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		return page, ErrTableNotFound
	}

	ts := p.now().UTC().Format(time.RFC3339)

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cols := row.Find("td")
		if cols.Length() < minColumns {
			page.Skipped++
			return
		}

		address := cell(cols, colAddress)
		if !keys.MatchesPattern(address) {
			p.logger.WithFields(logrus.Fields{"address": address}).Warn("invalid bitcoin address format")
			page.Skipped++
			return
		}

		rec := store.Record{
			Index:      cell(cols, colIndex),
			Address:    address,
			Balance:    cell(cols, colBalance),
			PrivateKey: cell(cols, colKey),
			DetailsURL: p.detailsURL(cols.Eq(colDetails)),
			Timestamp:  ts,
		}

		ok, err := keys.Matches(rec.Address, rec.PrivateKey)
		if err != nil {
			p.logger.WithFields(logrus.Fields{"address": address, "error": err}).Debug("record not verified")
		}
		rec.Verified = ok

		page.Records = append(page.Records, rec)
	})

	return page, nil
}

func (p *Parser) detailsURL(td *goquery.Selection) string {
	href, ok := td.Find("a").First().Attr("href")
	if !ok {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}

// HasNextPage reports whether the page links to a following page.
func HasNextPage(html string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, err
	}
	return hasNext(doc), nil
}

func hasNext(doc *goquery.Document) bool {
	return doc.Find(nextSelector).Length() > 0
}

func cell(cols *goquery.Selection, i int) string {
	return strings.TrimSpace(cols.Eq(i).Text())
}
