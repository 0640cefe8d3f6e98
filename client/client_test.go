package client

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ATMackay/keyscraper/internal/stack"
	"github.com/ATMackay/keyscraper/service"
	"github.com/ATMackay/keyscraper/store"
)

func startService(t *testing.T, st store.Store) string {
	l, err := service.NewLogger("error", "plain")
	if err != nil {
		t.Fatal(err)
	}
	s := service.New(0, l, st)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Stop(os.Interrupt) })
	return fmt.Sprintf("http://127.0.0.1:%d", s.Server().Port())
}

func TestClient(t *testing.T) {

	st := store.NewCSVStore(filepath.Join(t.TempDir(), "keys.csv"))
	if err := st.Append(context.Background(), stack.KnownRecords); err != nil {
		t.Fatal(err)
	}

	cl := New(startService(t, st))

	ctx := context.Background()

	t.Run("status", func(t *testing.T) {

		stat, err := cl.Status(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stat.Message != "OK" || stat.Service != service.ServiceName {
			t.Errorf("unexpected status %+v", *stat)
		}
	})

	t.Run("health", func(t *testing.T) {

		health, err := cl.Health(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(health.Failures) != 0 {
			t.Errorf("unexpected failures %v", health.Failures)
		}
	})

	t.Run("count", func(t *testing.T) {

		n, err := cl.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != len(stack.KnownRecords) {
			t.Errorf("want %d records got %d", len(stack.KnownRecords), n)
		}
	})

	t.Run("search", func(t *testing.T) {

		res, err := cl.Search(ctx, "1", 0)
		if err != nil {
			t.Fatal(err)
		}
		if res.Count != 2 || len(res.Records) != 2 {
			t.Fatalf("unexpected result %+v", *res)
		}
		for _, r := range res.Records {
			if !strings.HasPrefix(r.Address, "1") {
				t.Errorf("address %s does not match prefix", r.Address)
			}
		}
	})

	t.Run("search-limit", func(t *testing.T) {

		res, err := cl.Search(ctx, "1", 1)
		if err != nil {
			t.Fatal(err)
		}
		if res.Count != 2 || len(res.Records) != 1 {
			t.Errorf("unexpected result %+v", *res)
		}
	})

	t.Run("search-headers", func(t *testing.T) {

		h := make(http.Header)
		h.Set("X-Request-Id", "abc")
		if _, err := cl.Search(WithHeaders(ctx, h), "bc1q", 0); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := cl.Status(cctx); err == nil {
			t.Error("expected error on cancelled context")
		}
	})
}

func TestClientMissingStore(t *testing.T) {

	st := store.NewCSVStore(filepath.Join(t.TempDir(), "missing.csv"))
	cl := New(startService(t, st) + "/")

	_, err := cl.Search(context.Background(), "1", 0)
	if err == nil {
		t.Fatal("expected error for missing database")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "please scrape first") {
		t.Errorf("unexpected error %v", err)
	}
}
