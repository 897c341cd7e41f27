package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/monitor"
	"github.com/jobforge/jobforge/internal/http/middlewares"
)

// AddAlertRuleRequest is the POST /admin/alerts/rules payload.
type AddAlertRuleRequest struct {
	Name            string   `json:"name" binding:"required"`
	Condition       string   `json:"condition" binding:"required"`
	Threshold       float64  `json:"threshold"`
	Enabled         *bool    `json:"enabled"`
	Recipients      []string `json:"recipients"`
	CooldownMinutes int      `json:"cooldownMinutes"`
}

type AlertsHandler struct {
	monitor *monitor.Monitor
}

func NewAlertsHandler(m *monitor.Monitor) *AlertsHandler {
	return &AlertsHandler{monitor: m}
}

func (h *AlertsHandler) AddRule(ctx *gin.Context) {
	var req AddAlertRuleRequest
	if !BindJSON(ctx, &req) {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := job.AlertRule{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Condition:       job.AlertCondition(req.Condition),
		Threshold:       req.Threshold,
		Enabled:         enabled,
		Recipients:      req.Recipients,
		CooldownMinutes: req.CooldownMinutes,
	}

	if err := h.monitor.AddRule(rule); err != nil {
		RespondBadRequest(ctx, "invalid_alert_rule", gin.H{"reason": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, rule)
}

func (h *AlertsHandler) ListRules(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"items": h.monitor.GetAllRules()})
}

func (h *AlertsHandler) RemoveRule(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.monitor.RemoveRule(id); err != nil {
		if errors.Is(err, job.ErrAlertRuleNotFound) {
			RespondNotFound(ctx, "Alert rule not found")
			return
		}
		RespondInternal(ctx, "Could not remove alert rule")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GET /admin/alerts — currently firing / unresolved alert instances.
func (h *AlertsHandler) List(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"items": h.monitor.GetActiveAlerts()})
}

// POST /admin/alerts/:id/ack
func (h *AlertsHandler) Acknowledge(ctx *gin.Context) {
	id := ctx.Param("id")
	by, _ := middlewares.UserIDFromContext(ctx)

	if err := h.monitor.AcknowledgeAlert(id, by); err != nil {
		if errors.Is(err, job.ErrAlertNotFound) {
			RespondNotFound(ctx, "Alert not found")
			return
		}
		RespondInternal(ctx, "Could not acknowledge alert")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// POST /admin/alerts/:id/resolve
func (h *AlertsHandler) Resolve(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.monitor.ResolveAlert(id); err != nil {
		if errors.Is(err, job.ErrAlertNotFound) {
			RespondNotFound(ctx, "Alert not found")
			return
		}
		RespondInternal(ctx, "Could not resolve alert")
		return
	}
	ctx.Status(http.StatusNoContent)
}
