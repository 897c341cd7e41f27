package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobforge/jobforge/internal/config"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
	"github.com/jobforge/jobforge/internal/http/middlewares"
	"github.com/jobforge/jobforge/internal/utils"
)

// CreateJobRequest is the POST /jobs payload.
type CreateJobRequest struct {
	Type           string            `json:"type" binding:"required"`
	Priority       int               `json:"priority"`
	Params         map[string]any    `json:"params"`
	DigestID       *string           `json:"digestId"`
	MaxRetries     int               `json:"maxRetries"`
	ScheduleTime   *time.Time        `json:"scheduleTime"`
	Dependencies   []string          `json:"dependencies"`
	Tags           []string          `json:"tags"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey *string           `json:"idempotencyKey"`
}

type JobsHandler struct {
	queue *queue.Queue
}

func NewJobsHandler(q *queue.Queue) *JobsHandler {
	return &JobsHandler{queue: q}
}

// POST /jobs
func (h *JobsHandler) Create(ctx *gin.Context) {
	var req CreateJobRequest
	if !BindJSON(ctx, &req) {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.queue.CreateJob(cctx, job.CreateOptions{
		Type:           job.Type(req.Type),
		Priority:       req.Priority,
		Params:         req.Params,
		CreatedByID:    userID,
		DigestID:       req.DigestID,
		MaxRetries:     req.MaxRetries,
		ScheduleTime:   req.ScheduleTime,
		Dependencies:   req.Dependencies,
		Tags:           req.Tags,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, job.ErrInvalidDependency) {
			RespondBadRequest(ctx, "invalid dependency", gin.H{"reason": err.Error()})
			return
		}
		RespondInternal(ctx, "Could not enqueue job")
		return
	}

	ctx.JSON(http.StatusAccepted, j)
}

// GET /jobs/:id
func (h *JobsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_request", "invalid id")
		return
	}

	j, ok := h.queue.GetJob(id)
	if !ok {
		RespondNotFound(ctx, "Job not found")
		return
	}
	ctx.JSON(http.StatusOK, j)
}

// POST /jobs/:id/cancel
func (h *JobsHandler) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_request", "invalid id")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if !h.queue.CancelJob(cctx, id) {
		RespondConflict(ctx, "job_not_cancellable", "Job is unknown or already terminal")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"jobId": id, "status": job.StatusCancelled})
}

// POST /jobs/:id/retry
func (h *JobsHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_request", "invalid id")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if !h.queue.RetryJob(cctx, id) {
		RespondConflict(ctx, "job_not_retryable", "Job is unknown, not failed, or out of retries")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"jobId": id, "status": job.StatusPending})
}
