package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lessoncast/internal/logger"
	"lessoncast/pkg/types"
)

const maxRetainedJobs = 100

// Runner executes generation requests in the background on a single
// worker, so runs never overlap at the speech provider.
type Runner struct {
	svc   *Service
	queue chan queuedJob
	log   *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]*types.Job
	running bool
}

type queuedJob struct {
	id  string
	req Request
}

func NewRunner(svc *Service, queueSize int, log *logger.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Runner{
		svc:   svc,
		queue: make(chan queuedJob, queueSize),
		log:   log.With("service", "PipelineRunner"),
		jobs:  make(map[string]*types.Job),
	}
}

// Run processes queued jobs until ctx is cancelled. A job in flight sees
// the cancellation and finishes early.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.log.Info("generation runner started")
	for {
		select {
		case qj := <-r.queue:
			r.execute(ctx, qj)
		case <-ctx.Done():
			r.log.Info("generation runner stopping")
			return nil
		}
	}
}

func (r *Runner) execute(ctx context.Context, qj queuedJob) {
	r.update(qj.id, func(j *types.Job) { j.Status = types.JobRunning })

	report, err := r.svc.Run(ctx, qj.req)

	r.update(qj.id, func(j *types.Job) {
		j.Status = types.JobDone
		j.Report = report
		if err != nil {
			j.Error = err.Error()
		}
	})
	if err != nil {
		r.log.Warn("generation job failed", "job_id", qj.id, "lesson_id", qj.req.LessonID, "error", err)
	}
}

// Submit queues req and returns the job in its queued state.
func (r *Runner) Submit(req Request) (types.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return types.Job{}, ErrRunnerStopped
	}

	job := &types.Job{
		ID:        uuid.NewString(),
		LessonID:  req.LessonID,
		Status:    types.JobQueued,
		CreatedAt: time.Now(),
	}
	select {
	case r.queue <- queuedJob{id: job.ID, req: req}:
	default:
		return types.Job{}, ErrQueueFull
	}
	r.jobs[job.ID] = job
	r.pruneLocked()
	return *job, nil
}

// Get returns a copy of the job.
func (r *Runner) Get(id string) (types.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return types.Job{}, ErrJobNotFound
	}
	return *j, nil
}

// List returns all retained jobs, newest first.
func (r *Runner) List() []types.Job {
	r.mu.RLock()
	out := make([]types.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

func (r *Runner) update(id string, fn func(*types.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		fn(j)
	}
}

// pruneLocked drops the oldest finished jobs beyond the retention limit.
func (r *Runner) pruneLocked() {
	if len(r.jobs) <= maxRetainedJobs {
		return
	}
	done := make([]*types.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if j.Status == types.JobDone {
			done = append(done, j)
		}
	}
	sort.Slice(done, func(i, k int) bool { return done[i].CreatedAt.Before(done[k].CreatedAt) })
	for _, j := range done {
		if len(r.jobs) <= maxRetainedJobs {
			return
		}
		delete(r.jobs, j.ID)
	}
}
