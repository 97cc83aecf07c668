package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcome labels for TargetFetchesTotal.
const (
	FetchStatusSuccess      = "success"
	FetchStatusInvalidPath  = "invalid_path"
	FetchStatusNotFound     = "not_found"
	FetchStatusToolError    = "tool_error"
	FetchStatusTimeout      = "timeout"
	FetchStatusNotInstalled = "tool_not_installed"
	FetchStatusParseError   = "parse_error"
	FetchStatusUnexpected   = "unexpected"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smokeping_api_build_info",
		Help: "Build information of the SmokePing API server",
	}, []string{"version", "commit", "date"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smokeping_api_requests_total",
		Help: "Total number of API requests handled, by endpoint",
	}, []string{"endpoint"})

	TargetFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smokeping_api_target_fetches_total",
		Help: "Total number of RRD target fetches, by target and outcome",
	}, []string{"target", "status"})
)
