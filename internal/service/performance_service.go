package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
)

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type classSubjectLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.Subject, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
}

type resultLister interface {
	ListAll(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error)
}

// PerformanceService recomputes class performance views from the current result set.
type PerformanceService struct {
	classes    classLookup
	students   studentLookup
	subjects   classSubjectLister
	results    resultLister
	cache      *CacheService
	metrics    *MetricsService
	defaultTie scoring.TiePolicy
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// PerformanceConfig tunes view computation.
type PerformanceConfig struct {
	DefaultTiePolicy scoring.TiePolicy
	CacheTTL         time.Duration
}

// NewPerformanceService wires the performance service.
func NewPerformanceService(classes classLookup, students studentLookup, subjects classSubjectLister, results resultLister, cache *CacheService, metrics *MetricsService, cfg PerformanceConfig, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTiePolicy == "" {
		cfg.DefaultTiePolicy = scoring.TieInputOrder
	}
	return &PerformanceService{
		classes:    classes,
		students:   students,
		subjects:   subjects,
		results:    results,
		cache:      cache,
		metrics:    metrics,
		defaultTie: cfg.DefaultTiePolicy,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}
}

// ClassPerformance returns the ranked view of a class and whether it was served from cache.
// Pending (submitted) results are only counted for admins.
func (s *PerformanceService) ClassPerformance(ctx context.Context, filter models.PerformanceFilter, role models.UserRole) (*models.ClassPerformance, bool, error) {
	tie, err := s.prepare(&filter, role)
	if err != nil {
		return nil, false, err
	}

	key := PerformanceKey(filter)
	var cached models.ClassPerformance
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	perf, err := s.build(ctx, filter, tie)
	if err != nil {
		return nil, false, err
	}
	elapsed := time.Since(start)
	s.metrics.ObservePerformanceBuild(elapsed)
	s.logger.Debug("class performance built",
		zap.String("class_id", filter.ClassID),
		zap.String("session", filter.Session),
		zap.String("term", string(filter.Term)),
		zap.Int("students", len(perf.Students)),
		zap.Duration("elapsed", elapsed),
	)

	s.cache.Set(ctx, key, perf, s.cacheTTL)
	return perf, false, nil
}

// StudentSummary returns one student's ranked summary. The class defaults to the student's current class.
func (s *PerformanceService) StudentSummary(ctx context.Context, studentID string, filter models.PerformanceFilter, role models.UserRole) (*dto.StudentSummaryResponse, bool, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if filter.ClassID == "" {
		filter.ClassID = student.ClassID
	}

	perf, hit, err := s.ClassPerformance(ctx, filter, role)
	if err != nil {
		return nil, false, err
	}
	summary, ok := scoring.FindStudent(*perf, studentID)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student is not on the class roster")
	}
	return &dto.StudentSummaryResponse{
		ClassID:   perf.ClassID,
		ClassName: perf.ClassName,
		Session:   perf.Session,
		Term:      perf.Term,
		ClassSize: len(perf.Students),
		Subjects:  perf.Subjects,
		Summary:   summary,
	}, hit, nil
}

func (s *PerformanceService) prepare(filter *models.PerformanceFilter, role models.UserRole) (scoring.TiePolicy, error) {
	if filter.ClassID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	if filter.Session == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "session is required")
	}
	if filter.Term != "" && !filter.Term.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown term")
	}
	if filter.IncludePending && !role.IsAdmin() {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only admins may preview pending results")
	}
	tie := s.defaultTie
	if filter.TiePolicy != "" {
		parsed, err := scoring.ParseTiePolicy(filter.TiePolicy)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown tie policy")
		}
		tie = parsed
	}
	filter.TiePolicy = string(tie)
	return tie, nil
}

func (s *PerformanceService) build(ctx context.Context, filter models.PerformanceFilter, tie scoring.TiePolicy) (*models.ClassPerformance, error) {
	class, err := s.classes.FindByID(ctx, filter.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	roster, err := s.students.ListActiveByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	subjects, err := s.subjects.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}
	if len(subjects) == 0 {
		active := true
		subjects, err = s.subjects.List(ctx, models.SubjectFilter{Active: &active})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
		}
	}

	statuses := []models.ResultStatus{models.ResultStatusApproved, models.ResultStatusPrinted}
	if filter.IncludePending {
		statuses = append(statuses, models.ResultStatusSubmitted)
	}
	records, err := s.results.ListAll(ctx, models.ResultFilter{
		ClassID:  class.ID,
		Session:  filter.Session,
		Term:     filter.Term,
		Statuses: statuses,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}

	perf := scoring.BuildClassPerformance(*class, roster, subjects, records, scoring.Options{
		Session:   filter.Session,
		Term:      filter.Term,
		TiePolicy: tie,
	})
	return &perf, nil
}
