package handlers

import (
	"context"

	"github.com/jobforge/jobforge/internal/engine/handler"
)

// Backupper snapshots a named target to a destination, returning the
// artifact's size in bytes.
type Backupper interface {
	Backup(ctx context.Context, target, destination string) (bytesWritten int64, err error)
}

type BackupHandler struct {
	Backupper Backupper
}

func (h *BackupHandler) Validate(params map[string]any) bool {
	target, _ := params["target"].(string)
	return target != ""
}

func (h *BackupHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	target, _ := job.Params["target"].(string)
	destination, _ := job.Params["destination"].(string)

	n, err := h.Backupper.Backup(ctx, target, destination)
	if err != nil {
		return handler.Failure(err.Error())
	}
	return handler.Success(map[string]any{"bytesWritten": n})
}
