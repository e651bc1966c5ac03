package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docgallery/internal/config"
)

// ErrStopped is returned by Submit once the orchestrator has been stopped.
var ErrStopped = errors.New("build orchestrator is stopped")

// SiteBuilder builds a set of documents, reporting each one as it finishes.
type SiteBuilder interface {
	BuildAll(ctx context.Context, docs []string, onDone func(Result, error)) (Summary, error)
}

// Orchestrator runs queued build jobs on a fixed set of workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	builder SiteBuilder
	log     *slog.Logger
	cfg     config.Config

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewOrchestrator creates the job queue. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, builder SiteBuilder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		builder: builder,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	// Jobs share the site output, so one job runs at a time and the
	// builder fans out across documents.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job := <-o.queue:
				o.process(workerCtx, job)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running work and waits for workers to exit. Jobs still
// queued are never built.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a job for building.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	if o.stopped.Load() {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("build queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// JobCount returns how many jobs are tracked, finished or not.
func (o *Orchestrator) JobCount() int {
	return o.jobs.Len()
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID)
	job.SetStatus(StatusBuilding, "building")
	if len(job.Documents) > 0 {
		job.SetTotal(len(job.Documents))
	}

	start := time.Now()
	summary, err := o.builder.BuildAll(ctx, job.Documents, job.RecordResult)
	if len(job.Documents) == 0 {
		job.SetTotal(len(summary.Built) + len(summary.Failed))
	}
	if err != nil && len(summary.Failed) == 0 {
		job.AddError(err.Error())
	}

	status := job.Finish()
	log.Info("build finished",
		"status", status,
		"built", len(summary.Built),
		"failed", len(summary.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
