package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
	"github.com/noah-isme/sma-results-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
)

type resultStore interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, int, error)
	ListAll(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error)
	FindByKey(ctx context.Context, studentID, subjectID, classID string, term models.Term, session string) (*models.ResultRecord, error)
	Upsert(ctx context.Context, record *models.ResultRecord) error
	BulkUpsert(ctx context.Context, records []*models.ResultRecord) error
	CountByStatus(ctx context.Context, scope models.ResultScope) (map[models.ResultStatus]int, error)
	Transition(ctx context.Context, scope models.ResultScope, from, to models.ResultStatus, actorID string, at time.Time) (int64, error)
}

type subjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type classCacheInvalidator interface {
	InvalidateClass(ctx context.Context, classID string)
}

// ResultService owns result submission and the submitted -> approved -> printed lifecycle.
type ResultService struct {
	results    resultStore
	subjects   subjectLookup
	students   studentLookup
	normalizer *scoring.Normalizer
	cache      classCacheInvalidator
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewResultService wires the result service.
func NewResultService(results resultStore, subjects subjectLookup, students studentLookup, normalizer *scoring.Normalizer, cache classCacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if normalizer == nil {
		normalizer = scoring.NewNormalizer(scoring.PolicyReject)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		results:    results,
		subjects:   subjects,
		students:   students,
		normalizer: normalizer,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns a page of result records.
func (s *ResultService) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, *models.Pagination, error) {
	if filter.Term != "" && !filter.Term.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown term")
	}
	records, total, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	page, size := normalisePage(filter.Page, filter.PageSize, 50, 200)
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Submit validates, normalises and stores one result record.
func (s *ResultService) Submit(ctx context.Context, req dto.SubmitResultRequest, actorID string) (*models.ResultRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	if !req.Term.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown term")
	}

	subject, err := s.loadSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active || student.ClassID != req.ClassID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not on the class roster")
	}

	existing, err := s.results.FindByKey(ctx, req.StudentID, req.SubjectID, req.ClassID, req.Term, req.Session)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing result")
	}
	if existing != nil && existing.Status != models.ResultStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrFinalized, fmt.Sprintf("result already %s", existing.Status))
	}

	record, err := s.buildRecord(subject, req.StudentID, req.ClassID, req.Term, req.Session, scoring.Scores{Test1: req.Test1, Test2: req.Test2, Exam: req.Exam}, actorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}

	if err := s.results.Upsert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrResultLocked) {
			return nil, appErrors.ErrFinalized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store result")
	}

	s.afterWrite(ctx, req.ClassID)
	s.metrics.RecordResultsSubmitted("single", 1)
	s.logger.Info("result submitted",
		zap.String("student_id", record.StudentID),
		zap.String("subject_id", record.SubjectID),
		zap.String("class_id", record.ClassID),
		zap.String("term", string(record.Term)),
		zap.Int("percentage", record.Percentage),
		zap.String("actor_id", actorID),
	)
	return record, nil
}

// BulkSubmit stores one subject sheet for a class. Atomic mode stores nothing when any
// item is invalid; partialOnError stores the valid items and reports the rest.
func (s *ResultService) BulkSubmit(ctx context.Context, req dto.BulkSubmitRequest, actorID string) (*dto.BulkSubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if !req.Term.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown term")
	}
	mode := req.Mode
	if mode == "" {
		mode = dto.BulkModeAtomic
	}

	subject, err := s.loadSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}

	roster, err := s.students.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	onRoster := make(map[string]struct{}, len(roster))
	for _, student := range roster {
		onRoster[student.ID] = struct{}{}
	}

	current, err := s.results.ListAll(ctx, models.ResultFilter{ClassID: req.ClassID, SubjectID: req.SubjectID, Term: req.Term, Session: req.Session})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing results")
	}
	existing := make(map[string]models.ResultRecord, len(current))
	for _, record := range current {
		existing[record.StudentID] = record
	}

	resp := &dto.BulkSubmitResponse{Mode: mode}
	records := make([]*models.ResultRecord, 0, len(req.Items))
	indexes := make([]int, 0, len(req.Items))
	seen := make(map[string]struct{}, len(req.Items))
	reject := func(index int, studentID string, base *appErrors.Error, message string) {
		resp.Errors = append(resp.Errors, dto.BulkItemError{Index: index, StudentID: studentID, Code: base.Code, Message: message})
	}

	for i, item := range req.Items {
		if _, dup := seen[item.StudentID]; dup {
			reject(i, item.StudentID, appErrors.ErrValidation, "duplicate student in batch")
			continue
		}
		seen[item.StudentID] = struct{}{}

		if _, ok := onRoster[item.StudentID]; !ok {
			reject(i, item.StudentID, appErrors.ErrValidation, "student is not on the class roster")
			continue
		}
		prior, had := existing[item.StudentID]
		if had && prior.Status != models.ResultStatusSubmitted {
			reject(i, item.StudentID, appErrors.ErrFinalized, fmt.Sprintf("result already %s", prior.Status))
			continue
		}
		record, err := s.buildRecord(subject, item.StudentID, req.ClassID, req.Term, req.Session, scoring.Scores{Test1: item.Test1, Test2: item.Test2, Exam: item.Exam}, actorID)
		if err != nil {
			appErr := appErrors.FromError(err)
			reject(i, item.StudentID, appErr, appErr.Message)
			continue
		}
		if had {
			record.ID = prior.ID
			record.CreatedAt = prior.CreatedAt
		}
		records = append(records, record)
		indexes = append(indexes, i)
	}

	if mode == dto.BulkModeAtomic {
		if len(resp.Errors) > 0 {
			return resp, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%d of %d items rejected; nothing was stored", len(resp.Errors), len(req.Items)))
		}
		if err := s.results.BulkUpsert(ctx, records); err != nil {
			if errors.Is(err, repository.ErrResultLocked) {
				return nil, appErrors.Clone(appErrors.ErrFinalized, "a result in the batch was finalised concurrently; nothing was stored")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store results")
		}
		for _, record := range records {
			resp.Results = append(resp.Results, *record)
		}
	} else {
		for n, record := range records {
			if err := s.results.Upsert(ctx, record); err != nil {
				index := indexes[n]
				if errors.Is(err, repository.ErrResultLocked) {
					reject(index, record.StudentID, appErrors.ErrFinalized, "result already finalised")
					continue
				}
				s.logger.Warn("bulk item store failed", zap.String("student_id", record.StudentID), zap.Error(err))
				reject(index, record.StudentID, appErrors.ErrInternal, "failed to store result")
				continue
			}
			resp.Results = append(resp.Results, *record)
		}
	}

	resp.Accepted = len(resp.Results)
	if resp.Accepted > 0 {
		s.afterWrite(ctx, req.ClassID)
		s.metrics.RecordResultsSubmitted(mode, resp.Accepted)
	}
	s.logger.Info("bulk results submitted",
		zap.String("class_id", req.ClassID),
		zap.String("subject_id", req.SubjectID),
		zap.String("mode", mode),
		zap.Int("accepted", resp.Accepted),
		zap.Int("rejected", len(resp.Errors)),
	)
	return resp, nil
}

// Approve moves every submitted record in scope to approved.
func (s *ResultService) Approve(ctx context.Context, scope models.ResultScope, actorID string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, scope, models.ResultStatusSubmitted, models.ResultStatusApproved, actorID)
}

// Print moves every approved record in scope to printed.
func (s *ResultService) Print(ctx context.Context, scope models.ResultScope, actorID string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, scope, models.ResultStatusApproved, models.ResultStatusPrinted, actorID)
}

func (s *ResultService) transition(ctx context.Context, scope models.ResultScope, from, to models.ResultStatus, actorID string) (*dto.TransitionResponse, error) {
	if err := s.validator.Struct(scope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scope")
	}
	if !scope.Term.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown term")
	}
	if !from.CanTransitionTo(to) {
		return nil, appErrors.ErrInvalidTransition
	}

	affected, err := s.results.Transition(ctx, scope, from, to, actorID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update result status")
	}
	if affected == 0 {
		counts, err := s.results.CountByStatus(ctx, scope)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect results")
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		if total == 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no results in scope")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("no %s results in scope to mark %s", from, to))
	}

	s.afterWrite(ctx, scope.ClassID)
	s.metrics.RecordTransition(string(to), affected)
	s.logger.Info("results transitioned",
		zap.String("class_id", scope.ClassID),
		zap.String("subject_id", scope.SubjectID),
		zap.String("term", string(scope.Term)),
		zap.String("session", scope.Session),
		zap.String("status", string(to)),
		zap.Int64("affected", affected),
		zap.String("actor_id", actorID),
	)
	return &dto.TransitionResponse{Scope: scope, Status: to, Affected: affected}, nil
}

func (s *ResultService) loadSubject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if !subject.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject is inactive")
	}
	return subject, nil
}

func (s *ResultService) buildRecord(subject *models.Subject, studentID, classID string, term models.Term, session string, scores scoring.Scores, actorID string) (*models.ResultRecord, error) {
	normalized, err := s.normalizer.Normalize(scores, scoring.MaximaFor(*subject))
	if err != nil {
		if errors.Is(err, scoring.ErrScoreOutOfRange) {
			return nil, appErrors.Wrap(err, appErrors.ErrScoreOutOfRange.Code, appErrors.ErrScoreOutOfRange.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scores")
	}
	return &models.ResultRecord{
		StudentID:   studentID,
		SubjectID:   subject.ID,
		ClassID:     classID,
		Term:        term,
		Session:     session,
		Test1:       normalized.Scores.Test1,
		Test2:       normalized.Scores.Test2,
		Exam:        normalized.Scores.Exam,
		TotalScore:  normalized.Total,
		Percentage:  normalized.Percentage,
		Status:      models.ResultStatusSubmitted,
		SubmittedBy: actorID,
	}, nil
}

func (s *ResultService) afterWrite(ctx context.Context, classID string) {
	if s.cache != nil {
		s.cache.InvalidateClass(ctx, classID)
	}
}

func normalisePage(page, size, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	return page, size
}
