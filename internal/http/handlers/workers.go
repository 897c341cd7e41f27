package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobforge/jobforge/internal/config"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/workerpool"
)

// AddWorkerRequest is the POST /admin/workers payload.
type AddWorkerRequest struct {
	ID                      string   `json:"id" binding:"required"`
	MaxJobs                 int      `json:"maxJobs" binding:"required,min=1"`
	SupportedJobTypes       []string `json:"supportedJobTypes"`
	Enabled                 *bool    `json:"enabled"`
	HealthCheckIntervalSec  int      `json:"healthCheckIntervalSeconds"`
	GracefulShutdownTimeout int      `json:"gracefulShutdownTimeoutSeconds"`
}

type WorkersHandler struct {
	pool *workerpool.Manager
}

func NewWorkersHandler(pool *workerpool.Manager) *WorkersHandler {
	return &WorkersHandler{pool: pool}
}

func (h *WorkersHandler) Add(ctx *gin.Context) {
	var req AddWorkerRequest
	if !BindJSON(ctx, &req) {
		return
	}

	types := make([]job.Type, len(req.SupportedJobTypes))
	for i, t := range req.SupportedJobTypes {
		types[i] = job.Type(t)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	instance := job.WorkerInstance{
		ID:                      req.ID,
		MaxJobs:                 req.MaxJobs,
		SupportedJobTypes:       types,
		Enabled:                 enabled,
		HealthCheckInterval:     time.Duration(req.HealthCheckIntervalSec) * time.Second,
		GracefulShutdownTimeout: time.Duration(req.GracefulShutdownTimeout) * time.Second,
	}

	if err := h.pool.AddWorker(instance); err != nil {
		RespondBadRequest(ctx, "invalid_worker", gin.H{"reason": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, instance)
}

// DELETE /admin/workers/:id?graceful=true
func (h *WorkersHandler) Remove(ctx *gin.Context) {
	id := ctx.Param("id")
	graceful := ctx.Query("graceful") != "false"

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := h.pool.RemoveWorker(cctx, id, graceful); err != nil {
		if errors.Is(err, job.ErrWorkerNotFound) {
			RespondNotFound(ctx, "Worker not found")
			return
		}
		RespondInternal(ctx, "Could not remove worker")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GET /admin/workers
func (h *WorkersHandler) List(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"items": h.pool.ListWorkers()})
}
