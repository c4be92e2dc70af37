package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// ErrResultLocked is returned when an upsert targets a record that already left the submitted state.
var ErrResultLocked = errors.New("result record is not editable")

const resultColumns = `id, student_id, subject_id, class_id, term, session, test1, test2, exam, total_score, percentage, status, submitted_by, approved_by, approved_at, printed_at, created_at, updated_at`

const upsertResultQuery = `INSERT INTO result_records (` + resultColumns + `)
VALUES (:id, :student_id, :subject_id, :class_id, :term, :session, :test1, :test2, :exam, :total_score, :percentage, :status, :submitted_by, :approved_by, :approved_at, :printed_at, :created_at, :updated_at)
ON CONFLICT (student_id, subject_id, class_id, term, session) DO UPDATE SET
test1 = EXCLUDED.test1, test2 = EXCLUDED.test2, exam = EXCLUDED.exam, total_score = EXCLUDED.total_score,
percentage = EXCLUDED.percentage, submitted_by = EXCLUDED.submitted_by, updated_at = EXCLUDED.updated_at
WHERE result_records.status = 'submitted'`

// ResultRepository persists per-term subject results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// List returns a page of results matching the filter along with the total count.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, int, error) {
	where, args := buildResultWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM result_records %s ORDER BY class_id, subject_id, student_id, term LIMIT %d OFFSET %d", resultColumns, where, size, offset)
	var records []models.ResultRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM result_records "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}
	return records, total, nil
}

// ListAll returns every result matching the filter without pagination.
func (r *ResultRepository) ListAll(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error) {
	where, args := buildResultWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM result_records %s ORDER BY student_id, subject_id, term, updated_at", resultColumns, where)
	var records []models.ResultRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list all results: %w", err)
	}
	return records, nil
}

// FindByKey fetches the record for the natural key. sql.ErrNoRows is returned unwrapped.
func (r *ResultRepository) FindByKey(ctx context.Context, studentID, subjectID, classID string, term models.Term, session string) (*models.ResultRecord, error) {
	query := "SELECT " + resultColumns + " FROM result_records WHERE student_id = $1 AND subject_id = $2 AND class_id = $3 AND term = $4 AND session = $5 LIMIT 1"
	var record models.ResultRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, subjectID, classID, term, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find result: %w", err)
	}
	return &record, nil
}

// Upsert inserts the record or updates scores of an existing submitted record.
func (r *ResultRepository) Upsert(ctx context.Context, record *models.ResultRecord) error {
	return upsertResult(ctx, r.db, record)
}

// BulkUpsert writes all records in a single transaction. Any locked record aborts the batch.
func (r *ResultRepository) BulkUpsert(ctx context.Context, records []*models.ResultRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, record := range records {
		if err = upsertResult(ctx, tx, record); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk upsert: %w", err)
	}
	return nil
}

// CountByStatus groups the records in scope by status.
func (r *ResultRepository) CountByStatus(ctx context.Context, scope models.ResultScope) (map[models.ResultStatus]int, error) {
	where, args := scopeWhere(scope, 1)
	query := "SELECT status, COUNT(*) AS count FROM result_records WHERE " + where + " GROUP BY status"
	var rows []struct {
		Status models.ResultStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count results by status: %w", err)
	}
	counts := make(map[models.ResultStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Transition moves every record in scope from one status to the next and returns the affected count.
func (r *ResultRepository) Transition(ctx context.Context, scope models.ResultScope, from, to models.ResultStatus, actorID string, at time.Time) (int64, error) {
	set := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{to, at}
	switch to {
	case models.ResultStatusApproved:
		set = append(set, "approved_by = $3", "approved_at = $4")
		args = append(args, actorID, at)
	case models.ResultStatusPrinted:
		set = append(set, "printed_at = $3")
		args = append(args, at)
	}

	where, scopeArgs := scopeWhere(scope, len(args)+1)
	args = append(args, scopeArgs...)
	query := fmt.Sprintf("UPDATE result_records SET %s WHERE %s AND status = $%d", strings.Join(set, ", "), where, len(args)+1)
	args = append(args, from)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("transition results: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition results rows: %w", err)
	}
	return affected, nil
}

func upsertResult(ctx context.Context, exec sqlx.ExtContext, record *models.ResultRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.ResultStatusSubmitted
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	res, err := sqlx.NamedExecContext(ctx, exec, upsertResultQuery, record)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert result rows: %w", err)
	}
	if affected == 0 {
		return ErrResultLocked
	}
	return nil
}

func scopeWhere(scope models.ResultScope, start int) (string, []interface{}) {
	conditions := []string{
		fmt.Sprintf("class_id = $%d", start),
		fmt.Sprintf("session = $%d", start+1),
		fmt.Sprintf("term = $%d", start+2),
	}
	args := []interface{}{scope.ClassID, scope.Session, scope.Term}
	if scope.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", start+3))
		args = append(args, scope.SubjectID)
	}
	return strings.Join(conditions, " AND "), args
}

func buildResultWhere(filter models.ResultFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 6)
	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.ClassID != "" {
		add("class_id", filter.ClassID)
	}
	if filter.SubjectID != "" {
		add("subject_id", filter.SubjectID)
	}
	if filter.StudentID != "" {
		add("student_id", filter.StudentID)
	}
	if filter.Session != "" {
		add("session", filter.Session)
	}
	if filter.Term != "" {
		add("term", filter.Term)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
