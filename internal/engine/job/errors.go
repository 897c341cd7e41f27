package job

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidDependency = errors.New("invalid dependency")
	ErrInvalidJobType    = errors.New("invalid job type")
	ErrInvalidStatus     = errors.New("invalid job status")
	ErrRetryNotAllowed   = errors.New("job is not eligible for retry")
	ErrMaxRetriesReached = errors.New("job has exhausted its retries")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrWorkerNotFound    = errors.New("worker not found")
	ErrAlertRuleNotFound = errors.New("alert rule not found")
	ErrAlertNotFound     = errors.New("active alert not found")
)
