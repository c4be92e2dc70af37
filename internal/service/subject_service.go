package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	ListByClass(ctx context.Context, classID string) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	UpdateMaxima(ctx context.Context, subject *models.Subject) error
}

// SubjectService exposes the subject roster and its score maxima.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns subjects, optionally restricted to a class roster.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter, classID string) ([]models.Subject, error) {
	var (
		subjects []models.Subject
		err      error
	)
	if classID != "" {
		subjects, err = s.repo.ListByClass(ctx, classID)
	} else {
		filter.Search = strings.TrimSpace(filter.Search)
		subjects, err = s.repo.List(ctx, filter)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	for i := range subjects {
		applyDefaultMaxima(&subjects[i])
	}
	return subjects, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	applyDefaultMaxima(subject)
	return subject, nil
}

// UpdateMaxima changes the component maxima. Existing records keep their stored
// percentages; only new submissions use the new maxima.
func (s *SubjectService) UpdateMaxima(ctx context.Context, id string, req dto.UpdateSubjectMaximaRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maxima payload")
	}
	if req.Test1Max+req.Test2Max+req.ExamMax <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "maxima must sum to more than zero")
	}

	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	subject.Test1Max = req.Test1Max
	subject.Test2Max = req.Test2Max
	subject.ExamMax = req.ExamMax

	if err := s.repo.UpdateMaxima(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject maxima")
	}
	s.logger.Info("subject maxima updated",
		zap.String("subject_id", subject.ID),
		zap.Float64("test1_max", subject.Test1Max),
		zap.Float64("test2_max", subject.Test2Max),
		zap.Float64("exam_max", subject.ExamMax),
	)
	return subject, nil
}

func applyDefaultMaxima(subject *models.Subject) {
	if subject.MaxPossible() > 0 {
		return
	}
	subject.Test1Max = models.DefaultTest1Max
	subject.Test2Max = models.DefaultTest2Max
	subject.ExamMax = models.DefaultExamMax
}
