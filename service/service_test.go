package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ATMackay/keyscraper/store"
	yaml "gopkg.in/yaml.v3"
)

var testRecords = []store.Record{
	{Index: "1", Address: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", PrivateKey: "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn", Verified: true},
	{Index: "2", Address: "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm", PrivateKey: "5HpHagT65TZzG1PH3CSu63k8DbpvD8s5ip4nEB3kEsreAnchuDf", Verified: true},
	{Index: "3", Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", PrivateKey: "0000000000000000000000000000000000000000000000000000000000000001"},
}

// brokenStore fails every read.
type brokenStore struct {
	store.Store
}

func (brokenStore) Count(context.Context) (int, error) { return 0, errors.New("disk error") }

func (brokenStore) Search(context.Context, string) ([]store.Record, error) {
	return nil, errors.New("disk error")
}

func makeTestService(t *testing.T, st store.Store) *Service {

	l, err := NewLogger("error", "plain")
	if err != nil {
		t.Fatal(err)
	}

	return New(0, l, st)
}

func makeTestStore(t *testing.T) store.Store {
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "keys.csv"))
	if err := st.Append(context.Background(), testRecords); err != nil {
		t.Fatal(err)
	}
	return st
}

func Test_Logger(t *testing.T) {

	tests := []struct {
		name      string
		loglevel  string
		logformat string
		expectErr bool
	}{
		{
			"normal-info-plain",
			"info",
			"plain",
			false,
		},
		{
			"normal-info-json",
			"info",
			"json",
			false,
		},
		{
			"normal-debug-plain",
			"debug",
			"plain",
			false,
		},
		{
			"error-loglevel",
			"invalid",
			"plain",
			true,
		},
		{
			"error-logformat",
			"info",
			"invalid",
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLogger(tt.loglevel, tt.logformat, io.Discard); (err != nil) != tt.expectErr {
				t.Errorf("unexpected error '%v'", err)
			}
		})

	}
}

func Test_LoggerOutputs(t *testing.T) {
	var a, b bytes.Buffer
	l, err := NewLogger("info", "json", &a, &b)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hello")
	for i, buf := range []*bytes.Buffer{&a, &b} {
		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("output %d: %v", i, err)
		}
		if line["message"] != "hello" || line["serviceName"] != ServiceName {
			t.Errorf("output %d: unexpected log line %v", i, line)
		}
	}
}

func Test_StartStop(t *testing.T) {

	srv := makeTestService(t, makeTestStore(t))

	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", srv.Server().Port(), StatusEndPnt))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", resp.StatusCode)
	}

	srv.Stop(os.Kill)
}

func Test_API(t *testing.T) {

	srv := makeTestService(t, makeTestStore(t))

	search := func(prefix string, records ...store.Record) *SearchResponse {
		if records == nil {
			records = []store.Record{}
		}
		return &SearchResponse{Prefix: prefix, Count: len(records), Records: records}
	}

	tests := []struct {
		name             string
		endpoint         string
		methodType       string
		expectedResponse any
		expectedCode     int
	}{
		{
			"status",
			StatusEndPnt,
			http.MethodGet,
			&StatusResponse{Message: "OK", Version: FullVersion, Service: ServiceName},
			http.StatusOK,
		},
		{
			"health",
			HeathEndPnt,
			http.MethodGet,
			&HealthResponse{Version: FullVersion, Service: ServiceName, Failures: []string{}},
			http.StatusOK,
		},
		{
			"count",
			CountEndPnt,
			http.MethodGet,
			&CountResponse{Count: 3},
			http.StatusOK,
		},
		{
			"search-p2pkh",
			SearchPrfx + "1",
			http.MethodGet,
			search("1", testRecords[0], testRecords[1]),
			http.StatusOK,
		},
		{
			"search-segwit",
			SearchPrfx + "bc1q",
			http.MethodGet,
			search("bc1q", testRecords[2]),
			http.StatusOK,
		},
		{
			"search-no-match",
			SearchPrfx + "3J98",
			http.MethodGet,
			search("3J98"),
			http.StatusOK,
		},
		{
			"search-limit",
			SearchPrfx + "1?limit=1",
			http.MethodGet,
			&SearchResponse{Prefix: "1", Count: 2, Records: testRecords[:1]},
			http.StatusOK,
		},
		{
			"search-bad-limit",
			SearchPrfx + "1?limit=abc",
			http.MethodGet,
			&JSONError{Error: "invalid limit 'abc'"},
			http.StatusBadRequest,
		},
		{
			"search-wrong-method",
			SearchPrfx + "1",
			http.MethodPost,
			nil,
			http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.methodType, tt.endpoint, nil)
			rec := httptest.NewRecorder()
			srv.Server().Handler().ServeHTTP(rec, req)

			if g, w := rec.Code, tt.expectedCode; g != w {
				t.Fatalf("unexpected response code, want %v got %v", w, g)
			}
			if tt.expectedResponse == nil {
				return
			}
			expectedJSON, _ := json.Marshal(tt.expectedResponse)
			if g, w := bytes.TrimSpace(rec.Body.Bytes()), expectedJSON; !bytes.Equal(g, w) {
				t.Errorf("unexpected response, want %s, got %s", w, g)
			}
		})
	}
}

func Test_APIStoreErrors(t *testing.T) {
	missing := store.NewCSVStore(filepath.Join(t.TempDir(), "missing.csv"))
	missingBadger, err := store.OpenForRead(store.Badger, filepath.Join(t.TempDir(), "missing-db"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		st           store.Store
		endpoint     string
		expectedCode int
	}{
		{"health-missing-db", missing, HeathEndPnt, http.StatusOK},
		{"count-missing-db", missing, CountEndPnt, http.StatusOK},
		{"search-missing-db", missing, SearchPrfx + "1", http.StatusNotFound},
		{"health-missing-badger", missingBadger, HeathEndPnt, http.StatusOK},
		{"search-missing-badger", missingBadger, SearchPrfx + "1", http.StatusNotFound},
		{"health-broken", brokenStore{}, HeathEndPnt, http.StatusServiceUnavailable},
		{"count-broken", brokenStore{}, CountEndPnt, http.StatusInternalServerError},
		{"search-broken", brokenStore{}, SearchPrfx + "1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := makeTestService(t, tt.st)
			rec := httptest.NewRecorder()
			srv.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.endpoint, nil))
			if g, w := rec.Code, tt.expectedCode; g != w {
				t.Errorf("want %d got %d: %s", w, g, rec.Body.String())
			}
		})
	}
}

func Test_Metrics(t *testing.T) {
	srv := makeTestService(t, makeTestStore(t))
	rec := httptest.NewRecorder()
	srv.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetricsEndPnt, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected code %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func Test_Config(t *testing.T) {
	raw := `
port: 9090
loglevel: debug
max_pages: 4
proxy: none
min_delay: 1s
max_delay: 500ms
backend: badger
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatal(err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9090 || cfg.LogLevel != "debug" || cfg.MaxPages != 4 || cfg.Proxy != "none" {
		t.Errorf("yaml values lost: %+v", cfg)
	}
	if cfg.MinDelay != time.Second || cfg.MaxDelay != time.Second {
		t.Errorf("max delay should be raised to min delay, got %v-%v", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.LogFormat != defaultLogFormat || cfg.Output != DefaultOutput || cfg.BaseURL != DefaultBaseURL {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.RetryLimit != defaultRetryLimit || cfg.SaveInterval != defaultSaveInterval || cfg.Timeout != defaultTimeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func Test_ConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{"bad-backend", func(c *Config) { c.Backend = "sqlite" }},
		{"bad-format", func(c *Config) { c.Format = "xml" }},
		{"bad-port", func(c *Config) { c.Port = 70000 }},
		{"negative-pages", func(c *Config) { c.MaxPages = -1 }},
		{"negative-delay", func(c *Config) { c.MinDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.Sanitize()
			tt.mod(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
