package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
	"github.com/noah-isme/sma-results-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
	"github.com/noah-isme/sma-results-api/pkg/jobs"
	"github.com/noah-isme/sma-results-api/pkg/middleware/requestid"
)

// ExportJobType labels broadsheet jobs on the queue.
const ExportJobType = "broadsheet"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListPending(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	Cleanup(ttl time.Duration) ([]string, error)
}

// ExportJobConfig governs recovery and cleanup.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is a resolved download ready to stream.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportJobService manages asynchronous broadsheet export jobs.
type ExportJobService struct {
	repo      exportJobStore
	queue     jobDispatcher
	files     exportFiles
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportJobConfig
}

// NewExportJobService constructs the export job service.
func NewExportJobService(repo exportJobStore, queue jobDispatcher, files exportFiles, validate *validator.Validate, logger *zap.Logger, cfg ExportJobConfig) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportJobService{repo: repo, queue: queue, files: files, validator: validate, logger: logger, cfg: cfg}
}

// CreateJob validates the request, persists a job and enqueues it.
func (s *ExportJobService) CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	params, err := ValidateExportRequest(s.validator, req)
	if err != nil {
		return nil, err
	}
	job := &models.ExportJob{
		Params:    params,
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		progress := 100
		now := time.Now().UTC()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.logger.Info("export job queued",
		zap.String("job_id", job.ID),
		zap.String("class_id", params.ClassID),
		zap.String("format", string(params.Format)),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata. Non-admins only see their own jobs.
func (s *ExportJobService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !role.IsAdmin() && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ExportStatusResponse{ID: job.ID, Status: job.Status, Progress: job.Progress, ResultURL: job.ResultURL}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates a token and opens the stored export.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.files.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{File: file, Filename: filepath.Base(relPath), Format: job.Params.Format, ExpiresAt: expiresAt}, nil
}

// RecoverPendingJobs re-enqueues jobs left queued or processing by a previous process.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) int {
	pending, err := s.repo.ListPending(ctx, 100)
	if err != nil {
		s.logger.Warn("failed to list pending export jobs", zap.Error(err))
		return 0
	}
	recovered := 0
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Info("recovered pending export jobs", zap.Int("count", recovered))
	}
	return recovered
}

// StartCleanup purges expired exports on a ticker until ctx is cancelled.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes files of jobs finished before the result TTL.
func (s *ExportJobService) CleanupExpired(ctx context.Context) {
	const batch = 100
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
	if err != nil {
		s.logger.Warn("export cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultURL == nil {
			continue
		}
		token := lastPathSegment(*job.ResultURL)
		_, relPath, _, err := s.files.ParseToken(token, true)
		if err != nil {
			continue
		}
		if err := s.files.Delete(relPath); err != nil {
			s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.files.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export filesystem cleanup failed", zap.Error(err))
	}
}

func (s *ExportJobService) load(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// ValidateExportRequest checks an export request and converts it to job params.
func ValidateExportRequest(validate *validator.Validate, req dto.ExportRequest) (models.ExportJobParams, error) {
	if err := validate.Struct(req); err != nil {
		return models.ExportJobParams{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	if !req.Format.Valid() {
		return models.ExportJobParams{}, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if req.Term != "" && !req.Term.Valid() {
		return models.ExportJobParams{}, appErrors.Clone(appErrors.ErrValidation, "unknown term")
	}
	if req.Tie != "" {
		if _, err := scoring.ParseTiePolicy(req.Tie); err != nil {
			return models.ExportJobParams{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown tie policy")
		}
	}
	return models.ExportJobParams{
		ClassID:   req.ClassID,
		Session:   req.Session,
		Term:      req.Term,
		TiePolicy: req.Tie,
		Format:    req.Format,
	}, nil
}

func lastPathSegment(url string) string {
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ExportWorker bridges queue jobs to the export generator.
type ExportWorker struct {
	repo       exportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{repo: repo, exporter: exporter, logger: logger, maxRetries: maxRetries}
}

// Handle processes one queued export. The job is marked failed once Attempt reaches maxRetries.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ExportStatusFinished || record.Status == models.ExportStatusFailed {
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		w.markFailure(ctx, job, err)
		return err
	}

	finished := models.ExportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("path", result.RelativePath))
	return nil
}

func (w *ExportWorker) markFailure(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	params := repository.UpdateExportJobParams{ErrorMessage: &msg}
	if job.Attempt >= w.maxRetries {
		failed := models.ExportStatusFailed
		progress := 100
		now := time.Now().UTC()
		params.Status, params.Progress, params.FinishedAt = &failed, &progress, &now
	} else {
		queued := models.ExportStatusQueued
		reset := 0
		params.Status, params.Progress = &queued, &reset
	}
	if err := w.repo.Update(ctx, job.ID, params); err != nil {
		w.logger.Warn("failed to record export job failure", zap.String("job_id", job.ID), zap.Error(err))
	}
}
