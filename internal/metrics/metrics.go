// Package metrics instruments localization check runs with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gotrs-io/l10ncheck/internal/report"
)

const namespace = "l10ncheck"

// Recorder tracks case and run outcomes on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	cases            *prometheus.CounterVec
	caseDuration     *prometheus.HistogramVec
	screenshotErrors prometheus.Counter
	runs             *prometheus.CounterVec
	lastRunSuccess   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Total number of validated locale cases",
		}, []string{"locale", "outcome"}),
		caseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_duration_seconds",
			Help:      "Time to navigate, wait for and validate one locale",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 90},
		}, []string{"locale"}),
		screenshotErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenshot_errors_total",
			Help:      "Total number of screenshots that could not be captured or saved",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of check runs",
		}, []string{"outcome"}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run passed, 0 otherwise",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

func outcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

// ObserveCase records one validation result.
func (r *Recorder) ObserveCase(res report.Result) {
	if r == nil {
		return
	}
	r.cases.WithLabelValues(res.Locale, outcome(res.Passed)).Inc()
	r.caseDuration.WithLabelValues(res.Locale).Observe(res.Duration.Seconds())
}

// ScreenshotFailed counts a screenshot error.
func (r *Recorder) ScreenshotFailed() {
	if r == nil {
		return
	}
	r.screenshotErrors.Inc()
}

// ObserveRun records the aggregate outcome of a run. A nil report counts as
// a failed run, for example when no session could be acquired.
func (r *Recorder) ObserveRun(rep *report.Report) {
	if r == nil {
		return
	}
	passed := rep.Passed()
	r.runs.WithLabelValues(outcome(passed)).Inc()
	if passed {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
	finished := time.Now()
	if rep != nil && !rep.FinishedAt.IsZero() {
		finished = rep.FinishedAt
	}
	r.lastRunTimestamp.Set(float64(finished.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
