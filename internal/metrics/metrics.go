// Package metrics exposes Prometheus counters for the HTTP surface, logins
// and lifecycle transitions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware depend on.
type Recorder interface {
	RecordHTTPRequest(method string, status int, duration time.Duration)
	RecordLogin(outcome string)
	RecordTransition(entity string, transition string)
}

// Login outcomes.
const (
	LoginSucceeded    = "success"
	LoginUpstreamFail = "upstream_error"
	LoginNotAMember   = "not_a_member"
	LoginBadState     = "invalid_state"
	LoginError        = "error"
)

type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	logins       *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guild_overlay_http_requests_total",
			Help: "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guild_overlay_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guild_overlay_logins_total",
			Help: "Login callbacks, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guild_overlay_lifecycle_transitions_total",
			Help: "Successful crafting and event lifecycle transitions.",
		}, []string{"entity", "transition"}),
	}

	reg.MustRegister(c.httpRequests, c.httpDuration, c.logins, c.transitions)
	return c
}

func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTransition(entity string, transition string) {
	c.transitions.WithLabelValues(entity, transition).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordLogin(string)                           {}
func (Nop) RecordTransition(string, string)              {}
