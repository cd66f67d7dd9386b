// Package status tracks the lifecycle of asynchronous sync jobs.
//
// The registry is process-local: job ids are only meaningful to the instance
// that created them, and entries are forgotten once they are older than the
// retention period.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long a job entry is kept after its last update
const DefaultRetention = time.Hour

// Phase represents the current phase of a sync job
type Phase string

const (
	// PhaseInProgress means the job is still running
	PhaseInProgress Phase = "IN_PROGRESS"

	// PhaseCompleted means the job finished successfully
	PhaseCompleted Phase = "COMPLETED"

	// PhaseFailed means the job finished with an error
	PhaseFailed Phase = "FAILED"
)

// Job is a snapshot of a tracked job
type Job struct {
	ID        string    `json:"jobId"`
	Phase     Phase     `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registry is a concurrency-safe job table
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]Job
	retention time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithRetention sets how long entries survive after their last update
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs:      make(map[string]Job),
		retention: DefaultRetention,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateJob registers a new in-progress job and returns its id. Expired
// entries are collected on the way.
func (r *Registry) CreateJob() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.collectLocked(now)

	id := r.newID()
	r.jobs[id] = Job{ID: id, Phase: PhaseInProgress, UpdatedAt: now}
	return id
}

// SetStatus overwrites the phase and error of a job. Unknown ids are
// registered as-is.
func (r *Registry) SetStatus(id string, phase Phase, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[id] = Job{ID: id, Phase: phase, Error: errMsg, UpdatedAt: r.now()}
}

// GetStatus returns the job with the given id. Unknown and expired ids both
// report false.
func (r *Registry) GetStatus(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	if r.expired(job, r.now()) {
		delete(r.jobs, id)
		return Job{}, false
	}
	return job, true
}

// Len returns the number of retained entries, including expired ones that
// have not been collected yet
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *Registry) expired(job Job, now time.Time) bool {
	return now.Sub(job.UpdatedAt) > r.retention
}

func (r *Registry) collectLocked(now time.Time) {
	for id, job := range r.jobs {
		if r.expired(job, now) {
			delete(r.jobs, id)
		}
	}
}
