package handlers

import (
	"context"

	"github.com/jobforge/jobforge/internal/engine/handler"
)

// Syncer performs one data-sync run between a named source and destination.
type Syncer interface {
	Sync(ctx context.Context, source, destination string) (recordsSynced int, err error)
}

// DataSyncHandler delegates to a caller-supplied Syncer — the handler
// itself only validates params and reports the outcome.
type DataSyncHandler struct {
	Syncer Syncer
}

func (h *DataSyncHandler) Validate(params map[string]any) bool {
	src, _ := params["source"].(string)
	dst, _ := params["destination"].(string)
	return src != "" && dst != ""
}

func (h *DataSyncHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	src, _ := job.Params["source"].(string)
	dst, _ := job.Params["destination"].(string)

	n, err := h.Syncer.Sync(ctx, src, dst)
	if err != nil {
		return handler.Failure(err.Error())
	}
	return handler.Success(map[string]any{"recordsSynced": n})
}
