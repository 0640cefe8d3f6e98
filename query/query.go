// Package query searches a store by address prefix and renders the results.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ATMackay/keyscraper/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"
)

// Format selects how search results are written.
type Format string

const (
	Console Format = "console"
	CSV     Format = "csv"
	JSON    Format = "json"
)

var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name. The empty string selects Console.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Console, nil
	case Console, CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w '%s' (want console, csv or json)", ErrUnknownFormat, s)
	}
}

// Result is the outcome of a search.
type Result struct {
	Prefix  string         `json:"prefix"`
	Count   int            `json:"count"`
	Records []store.Record `json:"records"`
	File    string         `json:"-"` // output file for csv and json formats
}

// Query runs prefix searches against a store.
type Query struct {
	store  store.Store
	logger *logrus.Entry
	out    io.Writer // console output
	dir    string    // directory for csv and json output files
}

// New returns a Query printing console results to stdout and writing
// result files to the working directory.
func New(st store.Store, l *logrus.Entry) *Query {
	return &Query{store: st, logger: l, out: os.Stdout, dir: "."}
}

// WithOutput sets the console writer and the result file directory.
func (q *Query) WithOutput(w io.Writer, dir string) *Query {
	q.out = w
	q.dir = dir
	return q
}

// Find returns the records whose address starts with prefix.
func (q *Query) Find(ctx context.Context, prefix string) (*Result, error) {
	records, err := q.store.Search(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if records == nil {
		records = []store.Record{}
	}
	return &Result{Prefix: prefix, Count: len(records), Records: records}, nil
}

// Search finds records by prefix and writes them in format. Nothing is
// written when there are no matches.
func (q *Query) Search(ctx context.Context, prefix string, format Format) (*Result, error) {
	log := q.logger.WithFields(logrus.Fields{"prefix": prefix, "format": format})
	log.Infof("searching for prefix: '%s'", prefix)

	res, err := q.Find(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if res.Count == 0 {
		log.Info("no matching records found")
		return res, nil
	}

	switch format {
	case Console, "":
		if _, err := fmt.Fprintf(q.out, "\nSearch Results:\n%s\n", RenderTable(res.Records)); err != nil {
			return nil, err
		}
	case CSV:
		res.File = filepath.Join(q.dir, ResultFileName(prefix, CSV))
		if err := writeFile(res.File, func(w io.Writer) error {
			return store.WriteCSV(w, res.Records, true)
		}); err != nil {
			return nil, err
		}
		log.Infof("results saved to %s", res.File)
	case JSON:
		res.File = filepath.Join(q.dir, ResultFileName(prefix, JSON))
		if err := writeFile(res.File, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Records)
		}); err != nil {
			return nil, err
		}
		log.Infof("results saved to %s", res.File)
	default:
		return nil, fmt.Errorf("%w '%s'", ErrUnknownFormat, format)
	}

	log.Infof("found %d matching records", res.Count)
	return res, nil
}

// RenderTable draws records as a bordered console table.
func RenderTable(records []store.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Index, r.Address, r.Balance, r.PrivateKey, r.DetailsURL})
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("index", "address", "balance", "private_key", "details_url").
		Rows(rows...).
		Render()
}

// ResultFileName is search_results_<prefix>.<ext>, with characters outside
// [A-Za-z0-9_-] replaced so the prefix cannot escape the output directory.
func ResultFileName(prefix string, format Format) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefix)
	if name == "" {
		name = "all"
	}
	return fmt.Sprintf("search_results_%s.%s", name, format)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
