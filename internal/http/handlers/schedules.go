package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobforge/jobforge/internal/config"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/scheduler"
	"github.com/jobforge/jobforge/internal/http/middlewares"
)

// AddScheduleRequest is the POST /admin/schedules payload. Only one of
// IntervalSeconds/DailyAtHour/CronExpr should be set, matching the three
// Advance strategies the scheduler package ships.
type AddScheduleRequest struct {
	Name       string         `json:"name" binding:"required"`
	JobType    string         `json:"jobType" binding:"required"`
	Params     map[string]any `json:"params"`
	Priority   int            `json:"priority"`
	Enabled    *bool          `json:"enabled"`
	MaxRetries int            `json:"maxRetries"`

	IntervalSeconds int    `json:"intervalSeconds"`
	DailyAtHour     *int   `json:"dailyAtHour"`
	DailyAtMinute   int    `json:"dailyAtMinute"`
	CronExpr        string `json:"cronExpression"`
}

func (r AddScheduleRequest) buildAdvance() (job.Advance, error) {
	switch {
	case r.CronExpr != "":
		return scheduler.CronExpression(r.CronExpr)
	case r.DailyAtHour != nil:
		return scheduler.DailyAt(*r.DailyAtHour, r.DailyAtMinute), nil
	case r.IntervalSeconds > 0:
		return scheduler.FixedInterval(time.Duration(r.IntervalSeconds) * time.Second), nil
	default:
		return nil, errors.New("one of intervalSeconds, dailyAtHour, or cronExpression is required")
	}
}

type SchedulesHandler struct {
	scheduler *scheduler.Scheduler
}

func NewSchedulesHandler(s *scheduler.Scheduler) *SchedulesHandler {
	return &SchedulesHandler{scheduler: s}
}

func (h *SchedulesHandler) Add(ctx *gin.Context) {
	var req AddScheduleRequest
	if !BindJSON(ctx, &req) {
		return
	}

	advance, err := req.buildAdvance()
	if err != nil {
		RespondBadRequest(ctx, "invalid_schedule", gin.H{"reason": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	def, err := h.scheduler.AddSchedule(job.ScheduleDefinition{
		Name:        req.Name,
		JobType:     job.Type(req.JobType),
		Params:      req.Params,
		Priority:    req.Priority,
		Enabled:     enabled,
		MaxRetries:  req.MaxRetries,
		CreatedByID: userID,
		Advance:     advance,
	})
	if err != nil {
		RespondBadRequest(ctx, "invalid_schedule", gin.H{"reason": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, def)
}

func (h *SchedulesHandler) List(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"items": h.scheduler.GetAllSchedules()})
}

func (h *SchedulesHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	var req struct {
		Enabled  *bool `json:"enabled"`
		Priority *int  `json:"priority"`
	}
	if !BindJSON(ctx, &req) {
		return
	}

	def, err := h.scheduler.UpdateSchedule(id, func(d *job.ScheduleDefinition) {
		if req.Enabled != nil {
			d.Enabled = *req.Enabled
		}
		if req.Priority != nil {
			d.Priority = *req.Priority
		}
	})
	if err != nil {
		if errors.Is(err, job.ErrScheduleNotFound) {
			RespondNotFound(ctx, "Schedule not found")
			return
		}
		RespondInternal(ctx, "Could not update schedule")
		return
	}
	ctx.JSON(http.StatusOK, def)
}

func (h *SchedulesHandler) Remove(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.scheduler.RemoveSchedule(id); err != nil {
		if errors.Is(err, job.ErrScheduleNotFound) {
			RespondNotFound(ctx, "Schedule not found")
			return
		}
		RespondInternal(ctx, "Could not remove schedule")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// POST /admin/schedules/:id/trigger
func (h *SchedulesHandler) Trigger(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.scheduler.TriggerSchedule(cctx, id)
	if err != nil {
		if errors.Is(err, job.ErrScheduleNotFound) {
			RespondNotFound(ctx, "Schedule not found")
			return
		}
		RespondInternal(ctx, "Could not trigger schedule")
		return
	}
	ctx.JSON(http.StatusAccepted, j)
}
