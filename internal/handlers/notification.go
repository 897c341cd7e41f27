// Package handlers provides reference handler.Handler implementations for
// the built-in job types named in SPEC_FULL.md §3, grounded on the
// teacher's internal/jobs/validate.go switch-by-type payload checks and
// internal/jobs/registration_confirmation.go's typed-payload style. These
// are illustrative — spec.md's Non-goals exclude "concrete handlers,
// rendering" from the engine itself, so this package lives outside
// internal/engine and is registered by internal/http's router, not
// imported by the engine.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/notifications"
)

// NotificationPayload is the expected handler.JobView.Params shape for
// job.TypeNotification.
type NotificationPayload struct {
	Recipient string
	Subject   string
	Body      string
}

func decodeNotificationPayload(params map[string]any) (NotificationPayload, bool) {
	var p NotificationPayload
	p.Recipient, _ = params["recipient"].(string)
	p.Subject, _ = params["subject"].(string)
	p.Body, _ = params["body"].(string)
	return p, strings.TrimSpace(p.Recipient) != ""
}

// NotificationHandler delivers a message through a notifications.Notifier —
// the same delivery path the Monitor uses for alert recipients, reused here
// for job-driven notifications.
type NotificationHandler struct {
	Notifier notifications.Notifier
}

func (h *NotificationHandler) Validate(params map[string]any) bool {
	_, ok := decodeNotificationPayload(params)
	return ok
}

func (h *NotificationHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	p, ok := decodeNotificationPayload(job.Params)
	if !ok {
		return handler.Failure("invalid notification payload")
	}

	err := h.Notifier.Send(ctx, notifications.SendInput{
		Recipient: p.Recipient,
		Subject:   p.Subject,
		Body:      p.Body,
		Metadata:  job.Metadata,
	})
	if err != nil {
		return handler.Failure(fmt.Sprintf("notification delivery failed: %v", err))
	}
	return handler.Success(map[string]any{"recipient": p.Recipient})
}
