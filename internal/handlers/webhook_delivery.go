package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jobforge/jobforge/internal/engine/handler"
)

// WebhookDeliveryHandler POSTs the job's payload to a target URL, the same
// "deliver somewhere external, report success/failure" shape as the
// teacher's notification-confirmation send.
type WebhookDeliveryHandler struct {
	Client *http.Client
}

func (h *WebhookDeliveryHandler) Validate(params map[string]any) bool {
	url, _ := params["url"].(string)
	return url != ""
}

func (h *WebhookDeliveryHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	url, _ := job.Params["url"].(string)
	body, _ := job.Params["body"]

	payload, err := json.Marshal(body)
	if err != nil {
		return handler.Failure(fmt.Sprintf("marshal payload: %v", err))
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return handler.Failure(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return handler.Failure(fmt.Sprintf("delivery failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return handler.Failure(fmt.Sprintf("webhook rejected with status %d", resp.StatusCode))
	}
	return handler.Success(map[string]any{"status": resp.StatusCode})
}
