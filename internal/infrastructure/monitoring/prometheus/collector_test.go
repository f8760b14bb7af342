package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "advisor"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNewMetricsCollectorRequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	require.Error(t, err)
}

func TestRegistrationIsIdempotent(t *testing.T) {
	c := newTestCollector(t)

	first := c.RegisterCounter("turns_total", "turns", "intent", "status")
	assert.NotPanics(t, func() {
		c.RegisterCounter("turns_total", "turns", "intent", "status")
	})
	first.WithLabelValues("REVISIT", "ok").Inc()
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.TurnsTotal.WithLabelValues("ISSUE", "ok").Inc()
	m.TurnDuration.WithLabelValues("ISSUE").Observe(1.2)
	m.ResolverOutcomes.WithLabelValues("resolved").Inc()
	m.DocsReturned.WithLabelValues("ISSUE").Observe(5)
	m.LLMRequestDuration.WithLabelValues("generate").Observe(0.8)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "advisor_turns_total")
	assert.Contains(t, string(body), "advisor_turn_duration_seconds")
	assert.Contains(t, string(body), "advisor_resolver_outcomes_total")
}
