package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jobforge/jobforge/internal/engine/handler"
)

// HealthCheckHandler probes an HTTP endpoint named in the job's params and
// reports failure on a non-2xx response or timeout.
type HealthCheckHandler struct {
	Client *http.Client
}

func (h *HealthCheckHandler) Validate(params map[string]any) bool {
	url, _ := params["url"].(string)
	return url != ""
}

func (h *HealthCheckHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	url, _ := job.Params["url"].(string)

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return handler.Failure(fmt.Sprintf("build request: %v", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return handler.Failure(fmt.Sprintf("probe failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return handler.Failure(fmt.Sprintf("unhealthy status %d", resp.StatusCode))
	}
	return handler.Success(map[string]any{"status": resp.StatusCode})
}
