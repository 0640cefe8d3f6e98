package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ATMackay/keyscraper/query"
	"github.com/ATMackay/keyscraper/store"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

const (
	StatusEndPnt  = "/status"  // status endpoint for LIVENESS probing
	HeathEndPnt   = "/health"  // health endpoint for READINESS probing
	MetricsEndPnt = "/metrics" // Prometheus metrics endpoint

	PrefixKey = ":prefix"

	SearchPrfx  = "/v0/search/" // address prefix search
	CountEndPnt = "/v0/count"   // number of stored records

	timeout = 5 * time.Second
)

var searchEndPnt = SearchPrfx + PrefixKey

// StatusResponse contains status response fields.
type StatusResponse struct {
	Message string `json:"message,omitempty"`
	Version string `json:"version,omitempty"`
	Service string `json:"service,omitempty"`
}

// Status implements the status request endpoint. Always returns OK.
func Status() httprouter.Handle {
	return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := respondWithJSON(w, http.StatusOK, &StatusResponse{Message: "OK", Version: FullVersion, Service: ServiceName}); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Errorf("respond error: %v", err))
		}
	})

}

// HealthResponse contains health probe response fields.
type HealthResponse struct {
	Version  string   `json:"version,omitempty"`
	Service  string   `json:"service,omitempty"`
	Failures []string `json:"failures"`
}

// Health checks that the record store can be read. A database that has not
// been created yet counts as healthy.
func Health(st store.Store) httprouter.Handle {
	return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		health := &HealthResponse{
			Service: ServiceName,
			Version: FullVersion,
		}
		var failures = []string{}
		var httpCode = http.StatusOK

		ctx, cancelFunc := context.WithTimeout(r.Context(), timeout)
		defer cancelFunc()
		if _, err := st.Count(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
			failures = append(failures, fmt.Sprintf("store: %v", err))
		}

		health.Failures = failures

		if len(health.Failures) > 0 {
			httpCode = http.StatusServiceUnavailable
		}

		if err := respondWithJSON(w, httpCode, health); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Errorf("respond error: %v", err))
		}
	})
}

// SearchResponse contains the records whose address starts with the prefix.
type SearchResponse = query.Result

// Search handles the address prefix search endpoint. An optional limit query
// parameter truncates the record list; count always reports the full total.
func Search(q *query.Query) httprouter.Handle {
	return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {

		prefix := p.ByName("prefix")

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respondWithError(w, http.StatusBadRequest, fmt.Errorf("invalid limit '%s'", v))
				return
			}
			limit = n
		}

		ctx, cancelFunc := context.WithTimeout(r.Context(), timeout)
		defer cancelFunc()
		res, err := q.Find(ctx, prefix)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, err)
				return
			}
			respondWithError(w, http.StatusInternalServerError, err)
			return
		}
		if limit > 0 && len(res.Records) > limit {
			res.Records = res.Records[:limit]
		}

		if err := respondWithJSON(w, http.StatusOK, res); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Errorf("respond error: %v", err))
		}
	})
}

// CountResponse contains the number of stored records.
type CountResponse struct {
	Count int `json:"count"`
}

// Count handles the record count endpoint.
func Count(st store.Store) httprouter.Handle {
	return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancelFunc := context.WithTimeout(r.Context(), timeout)
		defer cancelFunc()
		n, err := st.Count(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusInternalServerError, err)
			return
		}
		if err := respondWithJSON(w, http.StatusOK, &CountResponse{Count: n}); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Errorf("respond error: %v", err))
		}
	})
}

func makeServiceAPIs(st store.Store, l *logrus.Entry) *api {
	q := query.New(st, l)
	return makeAPI([]endPoint{
		{
			path:       StatusEndPnt,
			handler:    Status(),
			methodType: http.MethodGet,
		},
		{
			path:       HeathEndPnt,
			handler:    Health(st),
			methodType: http.MethodGet,
		},
		{
			path:       searchEndPnt,
			handler:    Search(q),
			methodType: http.MethodGet,
		},
		{
			path:       CountEndPnt,
			handler:    Count(st),
			methodType: http.MethodGet,
		},
	})
}
