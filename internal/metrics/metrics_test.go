package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRecoveryMetrics(t *testing.T) {
	Init()
	Init()

	ObserveStrategy("RelaxedLoad", "success", 40*time.Millisecond)
	IncDocument("normal", true)
	AddPlaceholders("structural-repair", 2)
	AddPlaceholders("ignored", 0)
	ObserveMerge(true, 9)
	BreakerOpened("qpdf")

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, `pdfconsolidator_strategy_attempts_total{result="success",strategy="RelaxedLoad"}`)
	assert.Contains(t, out, `pdfconsolidator_placeholder_pages_total{reason="structural-repair"} 2`)
	assert.NotContains(t, out, `reason="ignored"`)
	assert.Contains(t, out, `pdfconsolidator_breaker_events_total{action="opened",tool="qpdf"} 1`)
	assert.Contains(t, out, "pdfconsolidator_merge_pages")
}
