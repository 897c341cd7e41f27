// Package handler defines the contract external collaborators implement to
// do the actual work behind a Job (spec.md §6 "Handler contract"). The
// engine treats every handler as opaque — digest generation, notification
// delivery, cleanup sweeps, and health checks are all out of scope for this
// repo and live behind this interface.
package handler

import "context"

// Result is what Handle returns: either Ok (optionally with Data) or an
// Error. Data is advisory and handler-specific.
type Result struct {
	Ok    bool
	Data  map[string]any
	Error string
}

func Success(data map[string]any) Result { return Result{Ok: true, Data: data} }
func Failure(err string) Result          { return Result{Ok: false, Error: err} }

// JobView is the read-only snapshot a Handler receives — deliberately not
// *job.Job so a handler cannot reach back into engine-owned state.
type JobView struct {
	ID          string
	Type        string
	Params      map[string]any
	Progress    int
	RetryCount  int
	MaxRetries  int
	CreatedByID string
	DigestID    *string
	Tags        []string
	Metadata    map[string]string
}

// Handler is registered against a Processor for one job Type.
type Handler interface {
	// Validate is pure, fast, and does no I/O (spec.md §6). A handler
	// that has nothing to validate can simply return true.
	Validate(params map[string]any) bool

	// Handle performs the job's work. It may block; it should observe
	// ctx cancellation (fired by the Processor's cancel token or job
	// timeout) between logical steps, per spec.md §5 "Cancellation".
	Handle(ctx context.Context, job JobView) Result
}

// Func adapts a plain function to the Handler interface for handlers that
// need no parameter validation, mirroring the teacher's preference for
// small adapter types over boilerplate structs.
type Func func(ctx context.Context, job JobView) Result

func (f Func) Validate(map[string]any) bool { return true }
func (f Func) Handle(ctx context.Context, job JobView) Result { return f(ctx, job) }
