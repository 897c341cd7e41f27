package processor

import (
	"context"
	"time"

	"github.com/jobforge/jobforge/internal/engine/events"
	"github.com/jobforge/jobforge/internal/engine/handler"
	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/engine/queue"
)

// launch runs j on its own goroutine, tracking a cancel token so cancelJob
// and Shutdown can interrupt it (spec.md §5 "Cancellation").
func (p *Processor) launch(parent context.Context, j job.Job, h handler.Handler) {
	ctx, cancel := context.WithTimeout(parent, p.cfg.JobTimeout)

	p.activeMu.Lock()
	p.active[j.ID] = cancel
	p.activeMu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		defer func() {
			p.activeMu.Lock()
			delete(p.active, j.ID)
			p.activeMu.Unlock()
		}()

		p.processJob(ctx, j, h)
	}()
}

func (p *Processor) toView(j job.Job) handler.JobView {
	return handler.JobView{
		ID:          j.ID,
		Type:        string(j.Type),
		Params:      j.Params,
		Progress:    j.Progress,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
		CreatedByID: j.CreatedByID,
		DigestID:    j.DigestID,
		Tags:        j.Tags,
		Metadata:    j.Metadata,
	}
}

// processJob validates, invokes the handler under the job's timeout, and
// applies success/failure policy (spec.md §4.2 "Job lifecycle").
func (p *Processor) processJob(ctx context.Context, j job.Job, h handler.Handler) {
	view := p.toView(j)
	start := time.Now()

	if !h.Validate(j.Params) {
		p.failTerminal(ctx, j.ID, "parameter validation failed")
		return
	}

	resultCh := make(chan handler.Result, 1)
	go func() {
		resultCh <- h.Handle(ctx, view)
	}()

	var result handler.Result
	select {
	case <-ctx.Done():
		result = handler.Failure("job timed out or was cancelled")
	case result = <-resultCh:
	}

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveDuration(time.Since(start))
	}

	if result.Ok {
		p.succeed(ctx, j.ID)
		return
	}

	p.fail(ctx, j, result.Error)
}

func (p *Processor) succeed(ctx context.Context, id string) {
	completed := job.StatusCompleted
	now := time.Now().UTC()
	progress := 100

	p.statsMu.Lock()
	p.stats.Completed++
	p.statsMu.Unlock()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.IncDone()
	}

	_, err := p.cfg.Queue.UpdateJob(ctx, id, queue.Update{
		Status:     &completed,
		Progress:   &progress,
		FinishedAt: &now,
	})
	if err != nil {
		p.cfg.Logger.Error("processor.succeed_update_failed", "job_id", id, "err", err)
	}
	p.notifyDone(id, true, "")
}

// fail applies spec.md §4.2's retry policy: if retryCount < maxRetries,
// increment retryCount and transition through Failed before calling
// Queue.RetryJob to re-schedule with backoff; otherwise the failure is
// terminal.
func (p *Processor) fail(ctx context.Context, j job.Job, reason string) {
	if j.RetryCount >= j.MaxRetries {
		p.failTerminal(ctx, j.ID, reason)
		return
	}

	failedStatus := job.StatusFailed
	now := time.Now().UTC()
	newRetryCount := j.RetryCount + 1

	p.statsMu.Lock()
	p.stats.Retried++
	p.statsMu.Unlock()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.IncRetried()
	}

	_, err := p.cfg.Queue.UpdateJob(ctx, j.ID, queue.Update{
		Status:     &failedStatus,
		Error:      &reason,
		FinishedAt: &now,
		RetryCount: &newRetryCount,
	})
	if err != nil {
		p.cfg.Logger.Error("processor.fail_update_failed", "job_id", j.ID, "err", err)
		p.notifyDone(j.ID, false, reason)
		return
	}

	if !p.cfg.Queue.RetryJob(ctx, j.ID) {
		p.cfg.Logger.Error("processor.retry_rejected", "job_id", j.ID)
	}
	p.notifyDone(j.ID, false, reason)
}

func (p *Processor) failTerminal(ctx context.Context, id string, reason string) {
	failedStatus := job.StatusFailed
	now := time.Now().UTC()

	p.statsMu.Lock()
	p.stats.Failed++
	p.statsMu.Unlock()
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.IncFailed()
	}

	_, err := p.cfg.Queue.UpdateJob(ctx, id, queue.Update{
		Status:     &failedStatus,
		Error:      &reason,
		FinishedAt: &now,
	})
	if err != nil {
		p.cfg.Logger.Error("processor.fail_terminal_update_failed", "job_id", id, "err", err)
	}
	p.publish(events.Event{Kind: events.JobFailed, JobID: id, Payload: map[string]any{"finalFailure": true, "reason": reason}})
	p.notifyDone(id, false, reason)
}

func (p *Processor) notifyDone(jobID string, success bool, errMsg string) {
	if p.cfg.OnJobDone != nil {
		p.cfg.OnJobDone(jobID, success, errMsg)
	}
}

// CancelJob fires the cancel token for an active job, if any. It does not
// itself transition job status — the Queue's CancelJob (or the handler
// observing ctx.Done) does that.
func (p *Processor) CancelJob(id string) bool {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()

	cancel, ok := p.active[id]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Shutdown stops the dispatch loop and waits up to timeout for active jobs
// to finish; anything still running past the deadline is force-cancelled
// and marked Failed with forceFailReason (spec.md §4.2 "Graceful
// shutdown"; also used verbatim by the worker pool manager's forceful
// worker removal, spec.md §4.4).
func (p *Processor) Shutdown(ctx context.Context, timeout time.Duration, forceFailReason string) {
	if forceFailReason == "" {
		forceFailReason = "shutdown: job force-cancelled after timeout"
	}
	p.shutdownMu.Lock()
	p.shuttingDown = true
	p.shutdownMu.Unlock()

	p.StopProcessing()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
	}

	p.activeMu.Lock()
	remaining := make([]string, 0, len(p.active))
	for id, cancel := range p.active {
		remaining = append(remaining, id)
		cancel()
	}
	p.activeMu.Unlock()

	// Wait for the cancelled jobs' goroutines to finish their own failure
	// handling first, so the terminal Failed status below is the last write.
	<-done

	for _, id := range remaining {
		p.failTerminal(ctx, id, forceFailReason)
	}
}
