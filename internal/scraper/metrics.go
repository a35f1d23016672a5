package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of HTTP requests dispatched.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// TotalRequestErrors tracks the number of requests that resulted in an error.
	TotalRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// TotalRateLimitHits tracks the number of 429 responses received.
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_rate_limit_hits_total",
		Help: "The total number of times the scraper was rate limited.",
	})
	// TotalPagesParsed tracks pages whose topic table parsed successfully,
	// zero-row pages included.
	TotalPagesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_parsed_total",
		Help: "The total number of result pages successfully parsed.",
	})
	// TotalRecordsExported tracks records written to the export file.
	TotalRecordsExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_records_exported_total",
		Help: "The total number of topic records exported.",
	})
)
