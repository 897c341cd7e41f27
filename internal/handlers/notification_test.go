package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/notifications"
)

type fakeNotifier struct {
	err   error
	calls []notifications.SendInput
}

func (f *fakeNotifier) Send(ctx context.Context, in notifications.SendInput) error {
	f.calls = append(f.calls, in)
	return f.err
}

func TestNotificationHandler_Validate(t *testing.T) {
	h := &NotificationHandler{}
	if h.Validate(map[string]any{}) {
		t.Fatalf("expected invalid without recipient")
	}
	if !h.Validate(map[string]any{"recipient": "a@example.com"}) {
		t.Fatalf("expected valid with recipient")
	}
}

func TestNotificationHandler_Handle_Success(t *testing.T) {
	n := &fakeNotifier{}
	h := &NotificationHandler{Notifier: n}

	result := h.Handle(context.Background(), handler.JobView{
		Params: map[string]any{"recipient": "a@example.com", "subject": "hi"},
	})
	if !result.Ok {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(n.calls) != 1 || n.calls[0].Recipient != "a@example.com" {
		t.Fatalf("expected notifier called with recipient, got %+v", n.calls)
	}
}

func TestNotificationHandler_Handle_DeliveryFailure(t *testing.T) {
	n := &fakeNotifier{err: errors.New("provider down")}
	h := &NotificationHandler{Notifier: n}

	result := h.Handle(context.Background(), handler.JobView{
		Params: map[string]any{"recipient": "a@example.com"},
	})
	if result.Ok {
		t.Fatalf("expected failure when notifier errors")
	}
}
