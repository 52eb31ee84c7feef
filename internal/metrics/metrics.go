package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kx0101/sessioncheck/internal/models"
)

type Metrics struct {
	registry *prometheus.Registry

	runsTotal          prometheus.Counter
	sessionsValidated  *prometheus.CounterVec
	ruleOutcomes       *prometheus.CounterVec
	validationDuration prometheus.Histogram
	rateLimitedTotal   prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessioncheck_validation_runs_total",
			Help: "Validation runs executed.",
		}),
		sessionsValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessioncheck_sessions_validated_total",
			Help: "Sessions validated, by overall result.",
		}, []string{"result"}),
		ruleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessioncheck_rule_outcomes_total",
			Help: "Rule evaluations, by rule id and result.",
		}, []string{"rule", "result"}),
		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sessioncheck_validation_duration_seconds",
			Help:    "Wall time of a validation run.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessioncheck_rate_limited_total",
			Help: "API requests rejected due to rate limiting.",
		}),
	}
}

// Observe records one finished run.
func (m *Metrics) Observe(results []models.ValidationResult, duration time.Duration) {
	m.runsTotal.Inc()
	m.validationDuration.Observe(duration.Seconds())

	for _, result := range results {
		m.sessionsValidated.WithLabelValues(result.OverallResult).Inc()

		for _, outcome := range result.Rules {
			label := models.ResultFail
			if outcome.Passed {
				label = models.ResultPass
			}

			m.ruleOutcomes.WithLabelValues(ruleLabel(outcome), label).Inc()
		}
	}
}

func (m *Metrics) RateLimited() {
	m.rateLimitedTotal.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func ruleLabel(outcome models.RuleOutcome) string {
	if outcome.RuleID != "" {
		return outcome.RuleID
	}

	return outcome.Field
}
