package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobforge/jobforge/internal/cache"
	"github.com/jobforge/jobforge/internal/engine/monitor"
	"github.com/jobforge/jobforge/internal/utils"
)

// MonitorSource is the subset of *monitor.Monitor the health handler needs.
type MonitorSource interface {
	HealthCheck() monitor.HealthStatus
	GetHistory() []monitor.HistoryEntry
}

type HealthHandler struct {
	ready   func() error
	monitor MonitorSource
	cache   *cache.Cache
}

func NewHealthHandler(ready func() error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// WithMonitor attaches the Monitor backing /health and /metrics/history.
func (h *HealthHandler) WithMonitor(m MonitorSource, c *cache.Cache) *HealthHandler {
	h.monitor = m
	h.cache = c
	return h
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.ready == nil {
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	if err := h.ready(); err != nil {
		RespondError(ctx, http.StatusServiceUnavailable, "not_ready", "dependency check failed", gin.H{"reason": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// GET /health — the engine's own health check endpoint (spec.md §4.5),
// distinct from /healthz (process liveness) and /readyz (dependency ping).
func (h *HealthHandler) EngineHealth(ctx *gin.Context) {
	if h.monitor == nil {
		RespondInternal(ctx, "health monitor not wired")
		return
	}
	status := h.monitor.HealthCheck()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}

// GET /metrics/history?limit=60&from=...&to=...
func (h *HealthHandler) MetricsHistory(ctx *gin.Context) {
	if h.monitor == nil {
		RespondInternal(ctx, "health monitor not wired")
		return
	}

	limit := parseIntDefault(ctx.Query("limit"), 60)
	if limit < 1 || limit > 1440 {
		RespondBadRequest(ctx, "invalid_query", "limit must be between 1 and 1440")
		return
	}

	var fromPtr, toPtr *time.Time
	if fromStr := ctx.Query("from"); fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			RespondBadRequest(ctx, "invalid_query", "from must be RFC3339 datetime")
			return
		}
		fromPtr = &t
	}
	if toStr := ctx.Query("to"); toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			RespondBadRequest(ctx, "invalid_query", "to must be RFC3339 datetime")
			return
		}
		toPtr = &t
	}

	cacheKey := ""
	if h.cache != nil {
		cacheKey = utils.BuildMetricsHistoryCacheKey(limit, fromPtr, toPtr)
		if v, ok := h.cache.Get(cacheKey); ok {
			ctx.JSON(http.StatusOK, v)
			return
		}
	}

	history := h.monitor.GetHistory()
	filtered := make([]monitor.HistoryEntry, 0, len(history))
	for _, e := range history {
		if fromPtr != nil && e.Timestamp.Before(*fromPtr) {
			continue
		}
		if toPtr != nil && e.Timestamp.After(*toPtr) {
			continue
		}
		filtered = append(filtered, e)
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	resp := gin.H{"count": len(filtered), "items": filtered}
	if h.cache != nil {
		h.cache.Set(cacheKey, resp)
	}
	ctx.JSON(http.StatusOK, resp)
}

