package build

import (
	"errors"
	"testing"
	"time"
)

func TestNewJob_Queued(t *testing.T) {
	job := NewJob([]string{"index.md"})
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if len(job.ID) != 26 {
		t.Errorf("expected 26-char job ID, got %q", job.ID)
	}
	if job.CreatedAt.IsZero() || !job.UpdatedAt.Equal(job.CreatedAt) {
		t.Error("expected CreatedAt and UpdatedAt to be set together")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusBuilding, "building"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_RecordResult(t *testing.T) {
	job := &Job{ID: "rec", UpdatedAt: time.Now()}
	job.SetTotal(3)
	job.RecordResult(Result{Doc: "a.md", Output: "a.html"}, nil)
	job.RecordResult(Result{Doc: "b.md", Output: "b.html"}, nil)
	job.RecordResult(Result{Doc: "c.md"}, errors.New("c.md:2: boom"))

	snap := job.Snapshot()
	if snap.Progress.Total != 3 || snap.Progress.Built != 2 || snap.Progress.Failed != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "c.md:2: boom" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
	if len(snap.Pages) != 2 || snap.Pages[0] != "a.html" {
		t.Errorf("unexpected pages %v", snap.Pages)
	}
}

func TestJob_Finish(t *testing.T) {
	tests := []struct {
		name   string
		built  int
		failed int
		extra  string
		want   JobStatus
	}{
		{"all built", 2, 0, "", StatusCompleted},
		{"nothing to build", 0, 0, "", StatusCompleted},
		{"some failed", 1, 1, "", StatusPartial},
		{"all failed", 0, 2, "", StatusFailed},
		{"discovery error", 0, 0, "discover documents: denied", StatusFailed},
		{"cancelled midway", 1, 0, "context canceled", StatusPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{ID: tt.name}
			for i := 0; i < tt.built; i++ {
				job.RecordResult(Result{}, nil)
			}
			for i := 0; i < tt.failed; i++ {
				job.RecordResult(Result{}, errors.New("fail"))
			}
			if tt.extra != "" {
				job.AddError(tt.extra)
			}
			if got := job.Finish(); got != tt.want {
				t.Errorf("Finish() = %q, want %q", got, tt.want)
			}
			if job.Phase != "done" {
				t.Errorf("expected phase done, got %q", job.Phase)
			}
		})
	}
}

func TestJob_SnapshotIsCopy(t *testing.T) {
	job := &Job{ID: "snap-test", Documents: []string{"a.md"}, UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Pages == nil {
		t.Error("expected non-nil slices in snapshot")
	}
	snap.Documents[0] = "changed.md"
	if job.Documents[0] != "a.md" {
		t.Error("snapshot shares the documents slice with the job")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	store.Put(&Job{ID: "old", UpdatedAt: time.Now()})
	time.Sleep(100 * time.Millisecond)
	store.Put(&Job{ID: "new", UpdatedAt: time.Now()})

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job left, got %d", store.Len())
	}
}
