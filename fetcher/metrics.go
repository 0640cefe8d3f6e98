package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keyscraper",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Listing page requests by outcome.",
	}, []string{"result"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keyscraper",
		Subsystem: "fetch",
		Name:      "retries_total",
		Help:      "Failed attempts that were retried.",
	})
)
