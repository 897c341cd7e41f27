// Package notifications delivers messages on behalf of job handlers (the
// "notification" job type, SPEC_FULL.md §3) and the Monitor's alert
// recipient fan-out (alert_notifier.go). Generalized from the teacher's
// registration-confirmation-specific Notifier into a generic send contract.
package notifications

import "context"

// SendInput is a generic message to deliver to one recipient.
type SendInput struct {
	Recipient string
	Subject   string
	Body      string
	Metadata  map[string]string
}

type Notifier interface {
	Send(ctx context.Context, input SendInput) error
}
