package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keyscraper",
		Name:      "pages_scraped_total",
		Help:      "Listing pages fetched and parsed.",
	})

	recordsParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keyscraper",
		Name:      "records_parsed_total",
		Help:      "Records extracted from listing pages.",
	})

	recordsStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keyscraper",
		Name:      "records_stored_total",
		Help:      "Records appended to the store.",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keyscraper",
		Name:      "runs_total",
		Help:      "Completed scrape runs by stop reason.",
	}, []string{"reason"})
)
