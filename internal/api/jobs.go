package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// JobStatus represents the lifecycle state of an async extraction.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID         string         `json:"id"`
	Status     JobStatus      `json:"status"`
	Engine     domain.Engine  `json:"engine"`
	FileName   string         `json:"fileName"`
	Percent    int            `json:"percent"`
	Result     *domain.Result `json:"result,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// Job tracks one async extraction. Watchers get the latest view; an
// intermediate percentage may be skipped but the terminal view never is.
type Job struct {
	mu       sync.Mutex
	view     JobView
	watchers map[chan JobView]struct{}
}

func (j *Job) snapshot() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.view
}

func (j *Job) start() {
	j.update(func(v *JobView) { v.Status = JobStatusRunning })
}

// setPercent records progress. Percentages never move backwards.
func (j *Job) setPercent(pct int) {
	j.update(func(v *JobView) {
		if pct > v.Percent {
			v.Percent = pct
		}
	})
}

func (j *Job) finish(text string, err error) {
	res := domain.NewResult(text, err)
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.view.Result = &res
	j.view.FinishedAt = &now
	if err != nil {
		j.view.Status = JobStatusFailed
	} else {
		j.view.Status = JobStatusCompleted
		j.view.Percent = 100
	}

	for ch := range j.watchers {
		deliver(ch, j.view)
		close(ch)
	}
	j.watchers = nil
}

func (j *Job) update(fn func(v *JobView)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.view.Status.Done() {
		return
	}
	fn(&j.view)
	for ch := range j.watchers {
		deliver(ch, j.view)
	}
}

// watch returns a channel carrying the current view followed by every
// update. It is closed after the terminal view or when ctx ends.
func (j *Job) watch(ctx context.Context) <-chan JobView {
	ch := make(chan JobView, 1)

	j.mu.Lock()
	defer j.mu.Unlock()

	ch <- j.view
	if j.view.Status.Done() {
		close(ch)
		return ch
	}

	if j.watchers == nil {
		j.watchers = make(map[chan JobView]struct{})
	}
	j.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.watchers[ch]; ok {
			delete(j.watchers, ch)
			close(ch)
		}
	}()

	return ch
}

// deliver replaces any unread view with v. Callers hold j.mu.
func deliver(ch chan JobView, v JobView) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// JobRegistry keeps jobs in memory. Finished jobs are dropped once they are
// older than the retention period.
type JobRegistry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time
}

// NewJobRegistry creates a registry. retention <= 0 keeps finished jobs forever.
func NewJobRegistry(retention time.Duration) *JobRegistry {
	return &JobRegistry{
		jobs:      make(map[string]*Job),
		retention: retention,
		now:       time.Now,
	}
}

// Create registers a pending job.
func (r *JobRegistry) Create(engine domain.Engine, fileName string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	job := &Job{view: JobView{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		Engine:    engine,
		FileName:  fileName,
		CreatedAt: r.now(),
	}}
	r.jobs[job.view.ID] = job
	return job
}

// Get looks up a job by id.
func (r *JobRegistry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	job, ok := r.jobs[id]
	return job, ok
}

// Len returns the number of retained jobs.
func (r *JobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *JobRegistry) sweepLocked() {
	if r.retention <= 0 {
		return
	}
	cutoff := r.now().Add(-r.retention)
	for id, job := range r.jobs {
		v := job.snapshot()
		if v.FinishedAt != nil && v.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
