package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordGeneration(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordGeneration(1500, 1200, 100, 0.01)
	m.RecordGeneration(1600, 1300, 100, 0.02)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GenerationsCompleted))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.EvaluationsTotal))
	assert.Equal(t, 1600.0, testutil.ToFloat64(m.BestScore))
	assert.Equal(t, 1300.0, testutil.ToFloat64(m.MeanScore))
}

func TestMetrics_RecordRun(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordRun(StatusSuccess, 12, 1700000000)
	m.RecordRun(StatusFailed, 1, 1700000100)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSuccessfulRun))
}

func TestMetrics_RecordDBQuery(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordDBQuery("postgres", "insert_run", 0.005, nil)
	m.RecordDBQuery("postgres", "insert_run", 0.005, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_run")))
}

func TestHandler_ExposesDefaultMetrics(t *testing.T) {
	RecordGeneration(1000, 900, 10, 0.001)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "b3_genetic_lab_optimizer_generations_completed_total"))
}
