package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driving"
	"github.com/regcap-labs/regcap/internal/logger"
)

// trackedJob pairs a job record with the cancel handle of its worker.
type trackedJob struct {
	mu     sync.Mutex
	job    driving.UploadJob
	cancel context.CancelFunc
}

// jobManager tracks background upload jobs for polling and
// cancellation.
type jobManager struct {
	mu   sync.RWMutex
	jobs map[string]*trackedJob
}

func newJobManager() *jobManager {
	return &jobManager{jobs: make(map[string]*trackedJob)}
}

func (m *jobManager) add(job driving.UploadJob, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = &trackedJob{job: job, cancel: cancel}
}

func (m *jobManager) get(jobID string) (*trackedJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tracked, ok := m.jobs[jobID]
	return tracked, ok
}

// setStatus transitions a job, ignoring updates after a terminal state.
func (t *trackedJob) setStatus(status driving.JobStatus, doc *domain.Document, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Status.Terminal() {
		return
	}
	t.job.Status = status
	t.job.Document = doc
	t.job.Error = errMsg
	if status.Terminal() {
		t.job.FinishedAt = time.Now().UTC()
	}
}

func (t *trackedJob) snapshot() driving.UploadJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job
}

// AddDocumentAsync runs AddDocument on a background worker and returns
// a job ID for polling. The worker is detached from the caller's
// context; it stops only via CancelJob.
func (s *SessionService) AddDocumentAsync(
	ctx context.Context, sessionID, filename string, pages []domain.Page,
) (string, error) {
	// Fail fast on unknown sessions rather than from the worker.
	if _, err := s.state(ctx, sessionID); err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	job := driving.UploadJob{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Filename:  filename,
		Status:    driving.JobPending,
		StartedAt: time.Now().UTC(),
	}
	s.jobs.add(job, cancel)

	go func() {
		defer cancel()

		tracked, _ := s.jobs.get(job.ID)
		tracked.setStatus(driving.JobRunning, nil, "")

		doc, err := s.AddDocument(jobCtx, sessionID, filename, pages)
		switch {
		case err == nil:
			tracked.setStatus(driving.JobDone, doc, "")
		case errorsIsCancel(err):
			tracked.setStatus(driving.JobCancelled, nil, "")
			logger.Debug("Upload job %s cancelled", job.ID)
		default:
			tracked.setStatus(driving.JobFailed, nil, err.Error())
			logger.Warn("Upload job %s failed: %v", job.ID, err)
		}
	}()

	return job.ID, nil
}

// Job returns the state of a background upload.
func (s *SessionService) Job(_ context.Context, jobID string) (*driving.UploadJob, error) {
	tracked, ok := s.jobs.get(jobID)
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	job := tracked.snapshot()
	return &job, nil
}

// CancelJob cancels an in-flight upload. The worker rolls back by
// never applying its results. Cancelling a finished job is a no-op.
func (s *SessionService) CancelJob(_ context.Context, jobID string) error {
	tracked, ok := s.jobs.get(jobID)
	if !ok {
		return domain.ErrJobNotFound
	}
	tracked.cancel()
	return nil
}
