// Package store persists scraped address/key records. Stores are append-only:
// records are never updated, deduplicated or removed.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Backend selects the on-disk format.
type Backend string

const (
	CSV    Backend = "csv"
	Badger Backend = "badger"
)

var (
	// ErrNotFound is returned when opening a database that has not been created yet.
	ErrNotFound = errors.New("database not found, please scrape first")

	ErrUnknownBackend = errors.New("unknown store backend")
)

// Record is a single scraped wallet address and private key pair plus the
// listing columns shown alongside it.
type Record struct {
	Index      string `json:"index"`
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	PrivateKey string `json:"private_key"`
	DetailsURL string `json:"details_url"`
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id"`
	Verified   bool   `json:"verified"`
}

// HasPrefix reports whether the record address starts with prefix.
func (r Record) HasPrefix(prefix string) bool {
	return strings.HasPrefix(r.Address, prefix)
}

// Store is an append-only table of Records.
type Store interface {
	// Append adds records after any existing ones.
	Append(ctx context.Context, records []Record) error
	// Search returns every record whose address starts with prefix, in stored order.
	Search(ctx context.Context, prefix string) ([]Record, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
	Close() error
}

// ParseBackend validates a backend name. The empty string selects CSV.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return CSV, nil
	case CSV, Badger:
		return b, nil
	default:
		return "", fmt.Errorf("%w '%s'", ErrUnknownBackend, s)
	}
}

// Open opens the store at path, creating it on first append.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case CSV, "":
		return NewCSVStore(path), nil
	case Badger:
		return NewBadgerStore(path)
	default:
		return nil, fmt.Errorf("%w '%s'", ErrUnknownBackend, backend)
	}
}

// OpenExisting opens the store at path and returns ErrNotFound if nothing
// has been written there yet.
func OpenExisting(backend Backend, path string) (Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Open(backend, path)
}

// OpenForRead opens the store at path for a reader that may start before
// anything has been scraped. A missing badger directory is not created;
// every read reports ErrNotFound instead. CSV stores already do this.
func OpenForRead(backend Backend, path string) (Store, error) {
	if backend == Badger {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return missingStore{}, nil
		}
	}
	return Open(backend, path)
}

// missingStore stands in for a database that does not exist yet.
type missingStore struct{}

func (missingStore) Append(context.Context, []Record) error {
	return ErrNotFound
}

func (missingStore) Search(context.Context, string) ([]Record, error) {
	return nil, ErrNotFound
}

func (missingStore) Count(context.Context) (int, error) {
	return 0, ErrNotFound
}

func (missingStore) Close() error { return nil }
