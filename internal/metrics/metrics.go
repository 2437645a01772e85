// Package metrics exports simulation progress to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rxdyn"

// Collector holds the metrics of every environment a server hosts, in its
// own registry.
type Collector struct {
	registry *prometheus.Registry

	steps       *prometheus.CounterVec
	events      *prometheus.CounterVec
	stepSeconds *prometheus.HistogramVec
	molecules   *prometheus.GaugeVec
	simTime     *prometheus.GaugeVec
	envs        prometheus.Gauge
}

// Step is what the collector needs to know about one completed step.
type Step struct {
	Environment string
	Seconds     float64
	SimTime     float64
	// Events holds the reactions executed during the step by event type.
	Events map[string]int64
	// Counts holds the live molecules after the step by species.
	Counts map[string]int
}

// NewCollector registers the simulation metrics. withRuntime adds the Go
// runtime and process collectors.
func NewCollector(withRuntime bool) *Collector {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		)
	}

	c := &Collector{
		registry: reg,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Completed simulation steps.",
		}, []string{"env"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_events_total",
			Help:      "Executed reactions by event type.",
		}, []string{"env", "type"}),
		stepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of one reaction step.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"env"}),
		molecules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "molecules",
			Help:      "Live molecules by species.",
		}, []string{"env", "species"}),
		simTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_seconds",
			Help:      "Simulated time elapsed.",
		}, []string{"env"}),
		envs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "environments",
			Help:      "Hosted environments.",
		}),
	}
	reg.MustRegister(c.steps, c.events, c.stepSeconds, c.molecules, c.simTime, c.envs)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for callers that add their own
// collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveStep(s Step) {
	c.steps.WithLabelValues(s.Environment).Inc()
	c.stepSeconds.WithLabelValues(s.Environment).Observe(s.Seconds)
	c.simTime.WithLabelValues(s.Environment).Set(s.SimTime)
	for et, n := range s.Events {
		if n > 0 {
			c.events.WithLabelValues(s.Environment, et).Add(float64(n))
		}
	}
	for species, n := range s.Counts {
		c.molecules.WithLabelValues(s.Environment, species).Set(float64(n))
	}
}

// AddEnvironment counts one more hosted environment.
func (c *Collector) AddEnvironment() {
	c.envs.Inc()
}

// Forget drops every series of environment env and counts it as removed.
func (c *Collector) Forget(env string) {
	c.envs.Dec()
	labels := prometheus.Labels{"env": env}
	c.steps.DeletePartialMatch(labels)
	c.events.DeletePartialMatch(labels)
	c.stepSeconds.DeletePartialMatch(labels)
	c.molecules.DeletePartialMatch(labels)
	c.simTime.DeletePartialMatch(labels)
}
