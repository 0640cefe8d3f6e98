package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var testRecords = []Record{
	{Index: "1", Address: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", Balance: "0 BTC", PrivateKey: "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn", Verified: true},
	{Index: "2", Address: "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm", Balance: "0 BTC", PrivateKey: "5HpHagT65TZzG1PH3CSu63k8DbpvD8s5ip4nEB3kEsreAnchuDf", Verified: true},
	{Index: "3", Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", Balance: "0 BTC", PrivateKey: "0000000000000000000000000000000000000000000000000000000000000001"},
	{Index: "4", Address: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", Balance: "0 BTC", PrivateKey: "duplicate"},
}

func testPath(t *testing.T, backend Backend) string {
	t.Helper()
	if backend == Badger {
		return filepath.Join(t.TempDir(), "db")
	}
	return filepath.Join(t.TempDir(), "keys.csv")
}

func Test_Store(t *testing.T) {
	for _, backend := range []Backend{CSV, Badger} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			path := testPath(t, backend)

			s, err := Open(backend, path)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Append(ctx, testRecords[:2]); err != nil {
				t.Fatal(err)
			}
			if err := s.Append(ctx, nil); err != nil {
				t.Fatal(err)
			}
			if err := s.Append(ctx, testRecords[2:]); err != nil {
				t.Fatal(err)
			}

			n, err := s.Count(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if g, w := n, len(testRecords); g != w {
				t.Fatalf("count: want %d got %d", w, g)
			}

			tests := []struct {
				prefix  string
				indexes []string
			}{
				{"1BgG", []string{"1", "4"}},
				{"1", []string{"1", "2", "4"}},
				{"bc1", []string{"3"}},
				{"1bgg", nil}, // case sensitive
				{"3", nil},
				{"", []string{"1", "2", "3", "4"}},
				{testRecords[0].Address + ":", nil},
				{testRecords[0].Address + ":\x00", nil},
			}
			for _, tt := range tests {
				got, err := s.Search(ctx, tt.prefix)
				if err != nil {
					t.Fatalf("search %q: %v", tt.prefix, err)
				}
				if len(got) != len(tt.indexes) {
					t.Fatalf("search %q: want %d records got %d", tt.prefix, len(tt.indexes), len(got))
				}
				for i, r := range got {
					if r.Index != tt.indexes[i] {
						t.Errorf("search %q [%d]: want index %s got %s", tt.prefix, i, tt.indexes[i], r.Index)
					}
					if !r.HasPrefix(tt.prefix) {
						t.Errorf("search %q returned %s", tt.prefix, r.Address)
					}
				}
			}

			got, err := s.Search(ctx, "1BgG")
			if err != nil {
				t.Fatal(err)
			}
			if got[0] != testRecords[0] {
				t.Errorf("round trip: want %+v got %+v", testRecords[0], got[0])
			}

			if err := s.Close(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func Test_StoreAppendsAcrossOpens(t *testing.T) {
	runs := []Record{
		{Index: "1", Address: "1Zzz", PrivateKey: "a"},
		{Index: "2", Address: "1Aaa", PrivateKey: "b"},
		{Index: "3", Address: "1Mmm", PrivateKey: "c"},
	}
	for _, backend := range []Backend{CSV, Badger} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			path := testPath(t, backend)

			for _, r := range runs {
				s, err := Open(backend, path)
				if err != nil {
					t.Fatal(err)
				}
				if err := s.Append(ctx, []Record{r}); err != nil {
					t.Fatal(err)
				}
				if err := s.Close(); err != nil {
					t.Fatal(err)
				}
			}

			s, err := OpenExisting(backend, path)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			n, err := s.Count(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != len(runs) {
				t.Fatalf("expected %d records after %d runs, got %d", len(runs), len(runs), n)
			}

			got, err := s.Search(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(runs) {
				t.Fatalf("search: want %d records got %d", len(runs), len(got))
			}
			for i, r := range got {
				if r.Address != runs[i].Address {
					t.Errorf("[%d]: want %s in insertion order, got %s", i, runs[i].Address, r.Address)
				}
			}
		})
	}
}

func Test_OpenExistingMissing(t *testing.T) {
	for _, backend := range []Backend{CSV, Badger} {
		if _, err := OpenExisting(backend, filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", backend, err)
		}
	}
}

func Test_CSVSearchBeforeAppend(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "keys.csv"))
	if _, err := s.Search(context.Background(), "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func Test_CSVLegacyColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.csv")
	legacy := "index,address,balance,private_key,details_url,timestamp\n" +
		"7,1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH,0,KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn,,2024-01-01T00:00:00\n"
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewCSVStore(path)
	if err := s.Append(context.Background(), testRecords[1:2]); err != nil {
		t.Fatal(err)
	}
	got, err := s.Search(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records got %d", len(got))
	}
	if got[0].Index != "7" || got[0].RunID != "" {
		t.Errorf("unexpected legacy record %+v", got[0])
	}
}

func Test_ParseBackend(t *testing.T) {
	tests := []struct {
		in        string
		want      Backend
		expectErr bool
	}{
		{"", CSV, false},
		{"csv", CSV, false},
		{"BADGER", Badger, false},
		{"sqlite", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.expectErr {
			t.Errorf("%q: unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("%q: want %v got %v", tt.in, tt.want, got)
		}
	}
}

func Test_OpenForReadMissing(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []Backend{CSV, Badger} {
		t.Run(string(backend), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing")
			s, err := OpenForRead(backend, path)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if _, err := s.Search(ctx, "1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("search: expected ErrNotFound, got %v", err)
			}
			if _, err := s.Count(ctx); !errors.Is(err, ErrNotFound) {
				t.Errorf("count: expected ErrNotFound, got %v", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("database should not be created, stat: %v", err)
			}
		})
	}
}

func Test_OpenForReadExisting(t *testing.T) {
	ctx := context.Background()
	path := testPath(t, Badger)
	s, err := Open(Badger, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, testRecords[:1]); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenForRead(Badger, path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if n, err := r.Count(ctx); err != nil || n != 1 {
		t.Errorf("want 1 record, got %d (%v)", n, err)
	}
}
