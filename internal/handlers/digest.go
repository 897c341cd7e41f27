package handlers

import (
	"context"
	"strings"

	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/notifications"
)

// DigestRenderer builds the digest body for a recipient, grounded on the
// original dev-digest system's digest-generation step (SPEC_FULL.md §1's
// "digest-scheduling system this spec was distilled from").
type DigestRenderer interface {
	Render(ctx context.Context, digestID string) (subject, body string, err error)
}

// DigestHandler renders a digest and delivers it through a Notifier —
// job.TypeDigest is the one built-in type that relies on Job.DigestID.
type DigestHandler struct {
	Renderer DigestRenderer
	Notifier notifications.Notifier
}

func (h *DigestHandler) Validate(params map[string]any) bool {
	recipient, _ := params["recipient"].(string)
	return strings.TrimSpace(recipient) != ""
}

func (h *DigestHandler) Handle(ctx context.Context, job handler.JobView) handler.Result {
	recipient, _ := job.Params["recipient"].(string)
	if job.DigestID == nil {
		return handler.Failure("digest job missing digestId")
	}

	subject, body, err := h.Renderer.Render(ctx, *job.DigestID)
	if err != nil {
		return handler.Failure("render digest: " + err.Error())
	}

	if err := h.Notifier.Send(ctx, notifications.SendInput{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	}); err != nil {
		return handler.Failure("deliver digest: " + err.Error())
	}
	return handler.Success(map[string]any{"digestId": *job.DigestID})
}
