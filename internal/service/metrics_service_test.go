package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, metrics *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsServiceWorkflowOperations(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveWorkflowOperation("submit", "ok")
	metrics.ObserveWorkflowOperation("submit", "WRONG_STATUS")
	metrics.ObserveWorkflowOperation("submit", "WRONG_STATUS")
	metrics.ObserveStoreAccess("load", 3*time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, metrics, "grade_workflow_operations_total", map[string]string{"operation": "submit", "outcome": "ok"}))
	assert.Equal(t, 2.0, counterValue(t, metrics, "grade_workflow_operations_total", map[string]string{"operation": "submit", "outcome": "wrong_status"}))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/gradesheets", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/api/v1/gradesheets",status="200"} 1`))
	assert.Contains(t, body, "goroutines_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveWorkflowOperation("submit", "ok")
	metrics.RecordCacheOperation(true, time.Millisecond)
	assert.Nil(t, metrics.Registry())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
