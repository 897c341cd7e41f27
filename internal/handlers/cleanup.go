package handlers

import (
	"context"
	"time"

	"github.com/jobforge/jobforge/internal/engine/handler"
)

// CleanupHandler deletes store records older than a configured age. Swept
// is a caller-supplied function so this handler stays store-agnostic.
type CleanupHandler struct {
	Swept func(ctx context.Context, olderThan time.Time) (int, error)
}

func (h *CleanupHandler) Validate(params map[string]any) bool {
	_, ok := params["olderThanDays"]
	return ok
}

func (h *CleanupHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	days, _ := job.Params["olderThanDays"].(float64)
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -int(days))

	if h.Swept == nil {
		return handler.Success(map[string]any{"deleted": 0})
	}

	n, err := h.Swept(ctx, cutoff)
	if err != nil {
		return handler.Failure(err.Error())
	}
	return handler.Success(map[string]any{"deleted": n})
}
