// Package metrics records deployment outcomes with Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "pws"
	subsystem = "deploy"
)

var histogramBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collectors holds the deployment metrics. A nil *Collectors records nothing.
type Collectors struct {
	registry *prometheus.Registry

	deployResults  *prometheus.CounterVec
	deployDuration *prometheus.HistogramVec
	buildDuration  *prometheus.HistogramVec
	warnings       *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Collectors {
	c := &Collectors{registry: prometheus.NewRegistry()}

	c.deployResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "results_total",
		Help:      "Number of deployment outcomes by last reached step",
	}, []string{"outcome", "step"})

	c.deployDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "duration_seconds",
		Help:      "Latency distribution of whole deployments",
		Buckets:   histogramBuckets,
	}, []string{"outcome"})

	c.buildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "build_duration_seconds",
		Help:      "Latency distribution of image builds",
		Buckets:   histogramBuckets,
	}, []string{"strategy", "outcome"})

	c.warnings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cleanup_warnings_total",
		Help:      "Number of best-effort cleanups that failed",
	}, []string{"op"})

	c.registry.MustRegister(c.deployResults, c.deployDuration, c.buildDuration, c.warnings)
	return c
}

// Registry returns the registry the collectors are registered on.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveDeploy records one deployment outcome.
func (c *Collectors) ObserveDeploy(outcome, step string, duration time.Duration) {
	if c == nil {
		return
	}
	c.deployResults.With(prometheus.Labels{"outcome": outcome, "step": step}).Inc()
	c.deployDuration.With(prometheus.Labels{"outcome": outcome}).Observe(duration.Seconds())
}

// ObserveBuild records one build.
func (c *Collectors) ObserveBuild(strategy, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.buildDuration.With(prometheus.Labels{"strategy": strategy, "outcome": outcome}).Observe(duration.Seconds())
}

// AddWarning counts a failed best-effort cleanup.
func (c *Collectors) AddWarning(op string) {
	if c == nil {
		return
	}
	c.warnings.With(prometheus.Labels{"op": op}).Inc()
}

// ErrPushDisabled is returned by Push when no gateway URL is configured.
var ErrPushDisabled = errors.New("pushgateway url not configured")

// Push sends the collected metrics to a Pushgateway. One-shot processes
// exit before they could be scraped.
func (c *Collectors) Push(ctx context.Context, url, job string) error {
	if c == nil {
		return nil
	}
	if url == "" {
		return ErrPushDisabled
	}
	return push.New(url, job).Gatherer(c.registry).PushContext(ctx)
}
