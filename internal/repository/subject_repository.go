package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-results-api/internal/models"
)

const subjectColumns = "id, code, name, test1_max, test2_max, exam_max, active, created_at, updated_at"

// SubjectRepository handles persistence for subjects and their score maxima.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects matching filters ordered by code.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	query := "SELECT " + subjectColumns + " FROM subjects WHERE 1=1"
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY code ASC"

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListByClass returns the active subjects assigned to a class in roster order.
func (r *SubjectRepository) ListByClass(ctx context.Context, classID string) ([]models.Subject, error) {
	const query = `SELECT s.id, s.code, s.name, s.test1_max, s.test2_max, s.exam_max, s.active, s.created_at, s.updated_at
FROM class_subjects cs JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1 AND s.active = TRUE ORDER BY cs.position ASC, s.code ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject. sql.ErrNoRows is returned unwrapped.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// UpdateMaxima stores new component maxima for a subject.
func (r *SubjectRepository) UpdateMaxima(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET test1_max = :test1_max, test2_max = :test2_max, exam_max = :exam_max, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject maxima: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject maxima rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
