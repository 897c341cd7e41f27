package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobforge/jobforge/internal/config"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/store"
	"github.com/jobforge/jobforge/internal/utils"
)

type AdminJobsHandler struct {
	jobStore store.JobStore
}

func NewAdminJobsHandler(jobStore store.JobStore) *AdminJobsHandler {
	return &AdminJobsHandler{jobStore: jobStore}
}

// GET /admin/jobs?limit=50&status=failed&cursor=...
func (h *AdminJobsHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		RespondBadRequest(ctx, "invalid_query", "limit must be between 1 and 200")
		return
	}

	var statuses []job.Status
	if s := ctx.Query("status"); s != "" {
		statuses = []job.Status{job.Status(s)}
	}

	afterUpdatedAt := time.Unix(0, 0).UTC()
	afterID := ""
	if cursor := ctx.Query("cursor"); cursor != "" {
		c, err := utils.DecodeJobCursor(cursor)
		if err != nil {
			RespondBadRequest(ctx, "invalid_query", "cursor is invalid")
			return
		}
		afterUpdatedAt = c.UpdatedAt
		afterID = c.ID
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.jobStore.ListCursor(cctx, store.Filter{Statuses: statuses, Limit: limit}, afterUpdatedAt, afterID)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs")
		return
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor *string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		c, err := utils.EncodeJobCursor(last.UpdatedAt, last.ID)
		if err == nil {
			nextCursor = &c
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"limit":      limit,
		"count":      len(items),
		"items":      items,
		"hasMore":    hasMore,
		"nextCursor": nextCursor,
	})
}

// POST /admin/jobs/reprocess-dead?limit=50
//
// Finds Failed jobs past their retry budget (the dead-letter set the
// Processor produces per SPEC_FULL.md §4.2) and re-queues each through the
// store directly, since the Queue itself only retries jobs still within
// MaxRetries.
func (h *AdminJobsHandler) ReprocessDead(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 500 {
		RespondBadRequest(ctx, "invalid_query", "limit must be between 1 and 500")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	dead, err := h.jobStore.FindMany(cctx, store.Filter{
		Statuses: []job.Status{job.StatusFailed},
		Limit:    limit,
	})
	if err != nil {
		RespondInternal(ctx, "Could not list dead jobs")
		return
	}

	requeued := 0
	for _, j := range dead {
		if j.RetryCount < j.MaxRetries {
			continue
		}
		j.Status = job.StatusPending
		j.RetryCount = 0
		j.Error = nil
		j.UpdatedAt = time.Now().UTC()
		if err := h.jobStore.Upsert(cctx, j); err == nil {
			requeued++
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"requeued": requeued})
}
