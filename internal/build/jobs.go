package build

import (
	"sync"
	"time"
)

// JobStatus represents the state of a build job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusBuilding  JobStatus = "building"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks one build request over a set of documents.
type Job struct {
	mu sync.Mutex

	ID        string    `json:"job_id"`
	Documents []string  `json:"documents"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	built []Result
}

// Progress tracks how many documents have been processed.
type Progress struct {
	Total  int      `json:"total"`
	Built  int      `json:"built"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// NewJob returns a queued job for docs. An empty list means the whole site.
func NewJob(docs []string) *Job {
	now := time.Now()
	return &Job{
		ID:        newJobID(),
		Documents: docs,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error without counting a document.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// SetTotal records how many documents the job covers.
func (j *Job) SetTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Total = n
	j.UpdatedAt = time.Now()
}

// RecordResult counts one finished document.
func (j *Job) RecordResult(res Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.Progress.Failed++
		j.Progress.Errors = append(j.Progress.Errors, err.Error())
	} else {
		j.Progress.Built++
		j.built = append(j.built, res)
	}
	j.UpdatedAt = time.Now()
}

// Finish derives the final status from the recorded results.
func (j *Job) Finish() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.Progress.Failed == 0 && len(j.Progress.Errors) == 0:
		j.Status = StatusCompleted
	case j.Progress.Built == 0:
		j.Status = StatusFailed
	default:
		j.Status = StatusPartial
	}
	j.Phase = "done"
	j.UpdatedAt = time.Now()
	return j.Status
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Documents []string  `json:"documents"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	Pages     []string  `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	docs := append([]string{}, j.Documents...)
	pages := make([]string, 0, len(j.built))
	for _, r := range j.built {
		pages = append(pages, r.Output)
	}
	return JobSnapshot{
		ID:        j.ID,
		Documents: docs,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress: Progress{
			Total:  j.Progress.Total,
			Built:  j.Progress.Built,
			Failed: j.Progress.Failed,
			Errors: errs,
		},
		Pages:     pages,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
