package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Columns is the header written to new CSV databases.
var Columns = []string{"index", "address", "balance", "private_key", "details_url", "timestamp", "run_id", "verified"}

var _ Store = (*CSVStore)(nil)

// CSVStore keeps records in a single CSV file with a header row.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by the CSV file at path. The file is
// created on the first Append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: filepath.Clean(path)}
}

// Path returns the CSV file location.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteCSV(f, records, info.Size() == 0); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return f.Sync()
}

func (s *CSVStore) Search(ctx context.Context, prefix string) ([]Record, error) {
	var out []Record
	err := s.scan(ctx, func(r Record) {
		if r.HasPrefix(prefix) {
			out = append(out, r)
		}
	})
	return out, err
}

func (s *CSVStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.scan(ctx, func(Record) { n++ })
	return n, err
}

func (s *CSVStore) Close() error {
	return nil
}

// scan reads every row, mapping columns by header name so that files written
// with fewer columns remain readable.
func (s *CSVStore) scan(ctx context.Context, fn func(Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	if _, ok := cols["address"]; !ok {
		return fmt.Errorf("%s: missing address column", s.path)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", s.path, err)
		}
		fn(fromRow(row, cols))
	}
}

// WriteCSV writes records to w, preceded by the Columns header when header is set.
func WriteCSV(w io.Writer, records []Record, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(Columns); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := cw.Write(toRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRow(r Record) []string {
	return []string{r.Index, r.Address, r.Balance, r.PrivateKey, r.DetailsURL, r.Timestamp, r.RunID, strconv.FormatBool(r.Verified)}
}

func fromRow(row []string, cols map[string]int) Record {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	verified, _ := strconv.ParseBool(get("verified"))
	return Record{
		Index:      get("index"),
		Address:    get("address"),
		Balance:    get("balance"),
		PrivateKey: get("private_key"),
		DetailsURL: get("details_url"),
		Timestamp:  get("timestamp"),
		RunID:      get("run_id"),
		Verified:   verified,
	}
}
