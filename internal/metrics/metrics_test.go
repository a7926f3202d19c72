package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/l10ncheck/internal/report"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.ObserveCase(report.Result{Locale: "en", Passed: true, Duration: time.Second})
	r.ObserveCase(report.Result{Locale: "fr", Passed: false, Duration: 2 * time.Second})
	r.ObserveCase(report.Result{Locale: "fr", Passed: false})
	r.ScreenshotFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cases.WithLabelValues("en", "passed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cases.WithLabelValues("fr", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.screenshotErrors))

	rep := report.New("playwright")
	rep.Add(report.Result{Locale: "en", Passed: true})
	rep.Finish()
	r.ObserveRun(rep)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lastRunSuccess))
	assert.Equal(t, float64(rep.FinishedAt.Unix()), testutil.ToFloat64(r.lastRunTimestamp))

	r.ObserveRun(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastRunSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("failed")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveCase(report.Result{Locale: "en"})
		r.ScreenshotFailed()
		r.ObserveRun(nil)
	})
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveCase(report.Result{Locale: "hi", Passed: true})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `l10ncheck_cases_total{locale="hi",outcome="passed"} 1`)
}
