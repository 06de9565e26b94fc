// Package metrics instruments scenario deployments with Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

const namespace = "kie_cloud_tests"

// Result label values.
const (
	Success = "success"
	Failure = "failure"
	Timeout = "timeout"
	Skipped = "skipped"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	DeployDuration   *prometheus.HistogramVec
	UndeployDuration *prometheus.HistogramVec
	DeployAttempts   *prometheus.CounterVec
	DeployTimeouts   *prometheus.CounterVec

	Registry *prometheus.Registry
}

// New creates the collectors and registers them in a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		DeployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deploy_duration_seconds",
			Help:      "The duration in seconds of a scenario deployment including retries",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"scenario", "backend", "result"}),
		UndeployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "undeploy_duration_seconds",
			Help:      "The duration in seconds of a scenario teardown",
			Buckets:   []float64{5, 15, 30, 60, 120, 300},
		}, []string{"scenario", "backend"}),
		DeployAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deploy_attempts_total",
			Help:      "The total number of scenario deployment attempts",
		}, []string{"scenario", "backend"}),
		DeployTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deploy_timeouts_total",
			Help:      "The total number of scenario deployment attempts that timed out",
		}, []string{"scenario", "backend"}),
		Registry: prometheus.NewRegistry(),
	}
	for _, c := range []prometheus.Collector{m.DeployDuration, m.UndeployDuration, m.DeployAttempts, m.DeployTimeouts} {
		if err := m.Registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Attempt counts one deployment attempt.
func (m *Metrics) Attempt(scenario, backend string) {
	if m == nil {
		return
	}
	m.DeployAttempts.WithLabelValues(scenario, backend).Inc()
}

// TimedOut counts one attempt that did not get ready in time.
func (m *Metrics) TimedOut(scenario, backend string) {
	if m == nil {
		return
	}
	m.DeployTimeouts.WithLabelValues(scenario, backend).Inc()
}

// ObserveDeploy records the outcome of a deployment started at start.
func (m *Metrics) ObserveDeploy(scenario, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DeployDuration.WithLabelValues(scenario, backend, Result(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveUndeploy(scenario, backend string, start time.Time) {
	if m == nil {
		return
	}
	m.UndeployDuration.WithLabelValues(scenario, backend).Observe(time.Since(start).Seconds())
}

// Result maps a deployment error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return Success
	case failure.IsTimeout(err):
		return Timeout
	case failure.IsMissingResource(err):
		return Skipped
	default:
		return Failure
	}
}

// WriteTextfile writes every collected metric to path in the textfile collector format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
