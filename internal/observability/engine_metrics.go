package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineCollector exposes cascade evaluation metrics. It satisfies
// core.EvaluationRecorder.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	StagesEvaluated    prometheus.Histogram
	Warnings           prometheus.Counter
	LookupErrors       prometheus.Counter
}

// NewEngineCollector registers engine metrics against the provided registerer.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	reg, gatherer := registryPair(reg)
	c := &EngineCollector{gatherer: gatherer}
	var err error
	if c.Evaluations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rfcascade_evaluations_total",
		Help: "Completed chain evaluations, labeled by whether any parameter lookup failed.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if c.EvaluationDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rfcascade_evaluation_duration_seconds",
		Help:    "Wall time of a full chain evaluation.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 5, 8),
	})); err != nil {
		return nil, err
	}
	if c.StagesEvaluated, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rfcascade_evaluation_stages",
		Help:    "Number of enabled stages walked per evaluation.",
		Buckets: prometheus.LinearBuckets(0, 4, 8),
	})); err != nil {
		return nil, err
	}
	if c.Warnings, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rfcascade_stage_warnings_total",
		Help: "Stages evaluated in a degraded mode, e.g. a corporate combiner in a transmit chain.",
	})); err != nil {
		return nil, err
	}
	if c.LookupErrors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rfcascade_lookup_errors_total",
		Help: "Parameter lookups that failed during evaluation.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveEvaluation records one finished evaluation.
func (c *EngineCollector) ObserveEvaluation(_ string, stages int, elapsed time.Duration, warnings, lookupErrors int) {
	if c == nil {
		return
	}
	result := "ok"
	if lookupErrors > 0 {
		result = "lookup_errors"
	}
	c.Evaluations.WithLabelValues(result).Inc()
	c.EvaluationDuration.Observe(elapsed.Seconds())
	c.StagesEvaluated.Observe(float64(stages))
	c.Warnings.Add(float64(warnings))
	c.LookupErrors.Add(float64(lookupErrors))
}
