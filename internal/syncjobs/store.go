package syncjobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
)

// Job is the state of one script execution.
type Job struct {
	ID         string     `json:"id"`
	Script     string     `json:"script"`
	Args       []string   `json:"args"`
	PID        int        `json:"pid,omitempty"`
	Running    bool       `json:"running"`
	ReturnCode *int       `json:"return_code,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LogPath    string     `json:"log_path"`
}

func (j *Job) clone() *Job {
	c := *j
	c.Args = append([]string(nil), j.Args...)
	if j.ReturnCode != nil {
		rc := *j.ReturnCode
		c.ReturnCode = &rc
	}
	if j.FinishedAt != nil {
		ft := *j.FinishedAt
		c.FinishedAt = &ft
	}
	return &c
}

// Store persists job state. Implementations must be safe for concurrent use
// and must hand out copies.
type Store interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context) ([]*Job, error)
}

// MemoryStore keeps jobs for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) SaveJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.clone()
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, core.ErrNotFound)
	}
	return job.clone(), nil
}

// ListJobs returns every job, newest first.
func (s *MemoryStore) ListJobs(ctx context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
