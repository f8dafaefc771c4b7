package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-ingest/internal/dto"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
	"github.com/noah-isme/timetable-ingest/pkg/jobs"
)

// ImportJobType labels queued timetable imports.
const ImportJobType = "timetable_import"

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type documentImporter interface {
	Import(ctx context.Context, raw []byte, persist bool) (*dto.ImportResult, error)
	PersistenceEnabled() bool
}

// ImportJobStore keeps asynchronous import state in memory.
type ImportJobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*dto.ImportJobResponse
	retention time.Duration
}

// NewImportJobStore builds a store that forgets finished jobs after retention.
func NewImportJobStore(retention time.Duration) *ImportJobStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &ImportJobStore{jobs: make(map[string]*dto.ImportJobResponse), retention: retention}
}

func (s *ImportJobStore) put(job dto.ImportJobResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now().UTC())
	s.jobs[job.JobID] = &job
}

func (s *ImportJobStore) update(id string, fn func(*dto.ImportJobResponse)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// Get returns a copy of the job state.
func (s *ImportJobStore) Get(id string) (dto.ImportJobResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return dto.ImportJobResponse{}, false
	}
	return *job, true
}

func (s *ImportJobStore) prune(now time.Time) {
	for id, job := range s.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > s.retention {
			delete(s.jobs, id)
		}
	}
}

// ImportJobService queues timetable documents for background import.
type ImportJobService struct {
	store      *ImportJobStore
	queue      jobDispatcher
	importer   documentImporter
	maxRetries int
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewImportJobService constructs the service.
// maxRetries must match the queue's retry budget so exhausted jobs are marked failed.
func NewImportJobService(store *ImportJobStore, queue jobDispatcher, importer documentImporter, maxRetries int, logger *zap.Logger) *ImportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewImportJobStore(0)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ImportJobService{store: store, queue: queue, importer: importer, maxRetries: maxRetries, logger: logger}
}

// SetMetrics records terminal job states on the given collector set.
func (s *ImportJobService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// SetQueue attaches the dispatcher once the queue has been built around Handle.
func (s *ImportJobService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Enqueue registers a document for background import. The result is always persisted.
func (s *ImportJobService) Enqueue(raw []byte) (*dto.ImportJobResponse, error) {
	if s.queue == nil || s.importer == nil || !s.importer.PersistenceEnabled() {
		return nil, appErrors.ErrPersistenceDisabled
	}
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable document is empty")
	}
	payload := make([]byte, len(raw))
	copy(payload, raw)

	job := dto.ImportJobResponse{
		JobID:      uuid.NewString(),
		Status:     dto.ImportJobQueued,
		EnqueuedAt: time.Now().UTC(),
	}
	s.store.put(job)
	if err := s.queue.Enqueue(jobs.Job{ID: job.JobID, Type: ImportJobType, Payload: payload, Enqueued: job.EnqueuedAt}); err != nil {
		s.markFinished(job.JobID, dto.ImportJobFailed, "", "failed to enqueue job")
		s.logger.Sugar().Warnw("failed to enqueue import job", "job_id", job.JobID, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue timetable import")
	}
	return &job, nil
}

// Status returns the state of a queued import.
func (s *ImportJobService) Status(id string) (*dto.ImportJobResponse, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
	}
	return &job, nil
}

// Handle processes a queue job. Decode failures are final and are not retried.
func (s *ImportJobService) Handle(ctx context.Context, job jobs.Job) error {
	raw, ok := job.Payload.([]byte)
	if !ok {
		s.markFinished(job.ID, dto.ImportJobFailed, "", "job payload missing")
		return nil
	}
	s.store.update(job.ID, func(state *dto.ImportJobResponse) {
		state.Status = dto.ImportJobRunning
		state.Attempts = job.Attempt + 1
	})

	result, err := s.importer.Import(ctx, raw, true)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrDecode) {
			s.markFinished(job.ID, dto.ImportJobFailed, "", err.Error())
			return nil
		}
		if job.Attempt >= s.maxRetries {
			s.markFinished(job.ID, dto.ImportJobFailed, "", err.Error())
			return err
		}
		s.store.update(job.ID, func(state *dto.ImportJobResponse) {
			state.Status = dto.ImportJobQueued
			state.Error = err.Error()
		})
		return err
	}
	s.markFinished(job.ID, dto.ImportJobSucceeded, result.ImportID, "")
	s.logger.Sugar().Infow("async timetable import finished", "job_id", job.ID, "import_id", result.ImportID)
	return nil
}

func (s *ImportJobService) markFinished(id, status, importID, message string) {
	now := time.Now().UTC()
	s.metrics.RecordImportJob(status)
	s.store.update(id, func(state *dto.ImportJobResponse) {
		state.Status = status
		state.ImportID = importID
		state.Error = message
		state.FinishedAt = &now
	})
}
