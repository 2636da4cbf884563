package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docx2dita/internal/convert"
	"github.com/dgallion1/docx2dita/internal/images"
	"github.com/dgallion1/docx2dita/internal/substitute"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusConverting JobStatus = "converting"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Options are the per-job conversion settings taken from the request.
// A nil verdict means the worker's decider answers that kind.
type Options struct {
	DetectShortDesc  bool
	ShortDescVerdict *bool
	DetectNotes      bool
	ConfirmNotes     bool
	NoteVerdict      *bool
	IncludeImages    bool
	Placement        images.Placement
	Rules            []substitute.Rule
}

// Job tracks the state of a single document conversion.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	TaskID string `json:"task_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Options Options `json:"-"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *Result
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Paragraphs int      `json:"paragraphs"`
	Images     int      `json:"images"`
	Steps      int      `json:"steps"`
	Errors     []string `json:"errors"`
}

// Result is the finished conversion of a job.
type Result struct {
	Output      string
	Diagnostics convert.Diagnostics
	Images      []images.File
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
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// NewJob creates a queued job for data.
func NewJob(filename, taskID string, data []byte, opts Options) *Job {
	now := time.Now()
	j := &Job{
		ID:          generateULID(),
		TaskID:      taskID,
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Options:     opts,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	j.fileData = data
	return j
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
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

// SetParsed records what the parser found.
func (j *Job) SetParsed(paragraphs, imgs int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Paragraphs = paragraphs
	j.Progress.Images = imgs
	j.UpdatedAt = time.Now()
}

// Complete stores the result, releases the upload and marks the job done.
func (j *Job) Complete(r *Result, steps int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = r
	j.fileData = nil
	j.Progress.Steps = steps
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the finished conversion, or nil until the job completes.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string               `json:"job_id"`
	TaskID      string               `json:"task_id"`
	Status      JobStatus            `json:"status"`
	Phase       string               `json:"phase"`
	Filename    string               `json:"filename"`
	ContentHash string               `json:"content_hash,omitempty"`
	Progress    Progress             `json:"progress"`
	Diagnostics *convert.Diagnostics `json:"diagnostics,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	snap := JobSnapshot{
		ID:          j.ID,
		TaskID:      j.TaskID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress: Progress{
			Paragraphs: j.Progress.Paragraphs,
			Images:     j.Progress.Images,
			Steps:      j.Progress.Steps,
			Errors:     errs,
		},
	}
	if j.result != nil {
		d := j.result.Diagnostics
		snap.Diagnostics = &d
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
