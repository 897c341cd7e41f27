package job

import (
	"time"

	"github.com/google/uuid"
)

// Job is the central entity processed by the engine. Field shapes mirror
// the persisted representation in internal/store so that marshalling a Job
// to/from its store record is lossless (spec.md invariant 5).
type Job struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Status    Status `json:"status"`
	Priority  int    `json:"priority"`

	Params   map[string]any `json:"params,omitempty"`
	Progress int            `json:"progress"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	CreatedByID string  `json:"createdById"`
	DigestID    *string `json:"digestId,omitempty"`

	RetryCount int `json:"retryCount"`
	MaxRetries int `json:"maxRetries"`

	ScheduleTime *time.Time `json:"scheduleTime,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`

	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Error *string `json:"error,omitempty"`

	// IdempotencyKey dedups job creation the way the teacher's publish-event
	// endpoint deduped on (eventId): creating with a key already present
	// returns the existing job instead of a new one.
	IdempotencyKey *string `json:"idempotencyKey,omitempty"`
}

// CreateOptions is the input to Queue.CreateJob.
type CreateOptions struct {
	Type           Type
	Priority       int
	Params         map[string]any
	CreatedByID    string
	DigestID       *string
	MaxRetries     int
	ScheduleTime   *time.Time
	Dependencies   []string
	Tags           []string
	Metadata       map[string]string
	IdempotencyKey *string
}

const defaultMaxRetries = 3

// New builds a Job from CreateOptions. Initial status resolution (Pending
// vs Queued, based on ScheduleTime) is the caller's (Queue's) job — New
// just fills in defaults and always starts a job Pending, matching the
// state machine's documented initial states.
func New(opts CreateOptions) Job {
	now := time.Now().UTC()

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return Job{
		ID:             uuid.NewString(),
		Type:           opts.Type,
		Status:         StatusPending,
		Priority:       opts.Priority,
		Params:         opts.Params,
		Progress:       0,
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedByID:    opts.CreatedByID,
		DigestID:       opts.DigestID,
		RetryCount:     0,
		MaxRetries:     maxRetries,
		ScheduleTime:   opts.ScheduleTime,
		Dependencies:   opts.Dependencies,
		Tags:           opts.Tags,
		Metadata:       opts.Metadata,
		IdempotencyKey: opts.IdempotencyKey,
	}
}

// IsDue reports whether the job's ScheduleTime (if any) has passed as of now.
func (j Job) IsDue(now time.Time) bool {
	return j.ScheduleTime == nil || !j.ScheduleTime.After(now)
}

// Clone returns a deep-enough copy for handing a snapshot to a worker
// (spec.md §3 "Workers hold weak references (job id + snapshot at dispatch)").
func (j Job) Clone() Job {
	clone := j

	if j.Params != nil {
		clone.Params = make(map[string]any, len(j.Params))
		for k, v := range j.Params {
			clone.Params[k] = v
		}
	}
	if j.Dependencies != nil {
		clone.Dependencies = append([]string(nil), j.Dependencies...)
	}
	if j.Tags != nil {
		clone.Tags = append([]string(nil), j.Tags...)
	}
	if j.Metadata != nil {
		clone.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
