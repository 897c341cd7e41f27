package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestProm_GinHandleMiddleware_RecordsRequestsTotal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	prom := NewProm(reg)

	r := gin.New()
	r.Use(prom.GinHandleMiddleware())
	r.GET("/widgets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/widgets/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	var m dto.Metric
	counter := prom.RequestsTotal.WithLabelValues(http.MethodGet, "/widgets/:id", "200")
	if err := counter.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected requests_total=1 labeled by route template, got %v", got)
	}
}

func TestJobMetrics_SnapshotAggregatesObservations(t *testing.T) {
	jm := NewJobMetrics()
	jm.IncClaimed()
	jm.IncDone()
	jm.IncFailed()
	jm.IncRetried()
	jm.IncDeadLettered()

	jm.ObserveDuration(10)
	jm.ObserveDuration(30)

	snap := jm.Snapshot()
	if snap.Claimed != 1 || snap.Done != 1 || snap.Failed != 1 || snap.Retried != 1 || snap.DeadLettered != 1 {
		t.Fatalf("unexpected snapshot counters: %+v", snap)
	}
	if snap.AverageDuration != 20 {
		t.Fatalf("expected avg duration 20ns, got %v", snap.AverageDuration)
	}
	if snap.MaxDuration != 30 {
		t.Fatalf("expected max duration 30ns, got %v", snap.MaxDuration)
	}
}
