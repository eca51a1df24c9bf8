// Package jobs runs document translations asynchronously behind the HTTP
// API: an in-memory job registry plus a worker pool fed by a queue.
package jobs

import (
	"sync"
	"time"
)

// Status represents the state of a translation job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusLoading     Status = "loading"
	StatusTranslating Status = "translating"
	StatusCompleted   Status = "completed"
	StatusPartial     Status = "partial"
	StatusFailed      Status = "failed"
)

// Job tracks the state of a single document translation.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	Filename   string `json:"filename"`
	TargetLang string `json:"target_lang"`

	Status Status `json:"status"`
	Phase  string `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   []byte
	errors   []string
}

// Progress tracks per-group translation outcomes.
type Progress struct {
	TotalGroups int      `json:"total_groups"`
	Success     int      `json:"success"`
	Compromise  int      `json:"compromise"`
	Fail        int      `json:"fail"`
	Errors      []string `json:"errors"`
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status Status, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalGroups records how many groups the document yielded.
func (j *Job) SetTotalGroups(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalGroups = n
	j.UpdatedAt = time.Now()
}

// SetTally records the per-group outcome counts.
func (j *Job) SetTally(success, compromise, fail int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Success = success
	j.Progress.Compromise = compromise
	j.Progress.Fail = fail
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw input bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw input bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResult stores the rendered translated HTML and drops the input bytes,
// which are no longer needed.
func (j *Job) SetResult(html []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = html
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Result returns the rendered translated HTML, or nil while the job is
// still in flight.
func (j *Job) Result() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID         string    `json:"job_id"`
	Filename   string    `json:"filename"`
	TargetLang string    `json:"target_lang"`
	Status     Status    `json:"status"`
	Phase      string    `json:"phase"`
	Progress   Progress  `json:"progress"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return Snapshot{
		ID:         j.ID,
		Filename:   j.Filename,
		TargetLang: j.TargetLang,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress: Progress{
			TotalGroups: j.Progress.TotalGroups,
			Success:     j.Progress.Success,
			Compromise:  j.Progress.Compromise,
			Fail:        j.Progress.Fail,
			Errors:      errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Store is a thread-safe in-memory job registry with TTL eviction.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *Store) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
