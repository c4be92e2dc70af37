package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/models"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var resultColumnNames = []string{"id", "student_id", "subject_id", "class_id", "term", "session", "test1", "test2", "exam", "total_score", "percentage", "status", "submitted_by", "approved_by", "approved_at", "printed_at", "created_at", "updated_at"}

func TestResultRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(resultColumnNames).
		AddRow("r-1", "s-1", "math", "jss1", "First Term", "2025/2026", 15.0, 18.0, 50.0, 83.0, 83, "approved", "sup-1", "admin-1", now, nil, now, now)
	where := "WHERE 1=1 AND class_id = $1 AND session = $2 AND status IN ($3, $4)"
	mock.ExpectQuery(regexp.QuoteMeta("FROM result_records " + where + " ORDER BY class_id, subject_id, student_id, term LIMIT 10 OFFSET 10")).
		WithArgs("jss1", "2025/2026", models.ResultStatusApproved, models.ResultStatusPrinted).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM result_records " + where)).
		WithArgs("jss1", "2025/2026", models.ResultStatusApproved, models.ResultStatusPrinted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	records, total, err := repo.List(context.Background(), models.ResultFilter{
		ClassID:  "jss1",
		Session:  "2025/2026",
		Statuses: []models.ResultStatus{models.ResultStatusApproved, models.ResultStatusPrinted},
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 83, records[0].Percentage)
	assert.Equal(t, models.TermFirst, records[0].Term)
	require.NotNil(t, records[0].ApprovedBy)
	assert.Equal(t, "admin-1", *records[0].ApprovedBy)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryFindByKeyNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM result_records WHERE student_id = $1")).
		WithArgs("s-1", "math", "jss1", models.TermFirst, "2025/2026").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByKey(context.Background(), "s-1", "math", "jss1", models.TermFirst, "2025/2026")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryUpsertLocked(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("INSERT INTO result_records .* ON CONFLICT").
		WillReturnResult(sqlmock.NewResult(0, 0))

	record := &models.ResultRecord{StudentID: "s-1", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: "2025/2026"}
	err := repo.Upsert(context.Background(), record)
	assert.ErrorIs(t, err, ErrResultLocked)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.ResultStatusSubmitted, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryBulkUpsertRollsBack(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO result_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO result_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.BulkUpsert(context.Background(), []*models.ResultRecord{
		{StudentID: "s-1", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: "2025/2026"},
		{StudentID: "s-2", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: "2025/2026"},
	})
	assert.ErrorIs(t, err, ErrResultLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryBulkUpsertCommits(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO result_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.BulkUpsert(context.Background(), []*models.ResultRecord{
		{StudentID: "s-1", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: "2025/2026"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryTransitionApprove(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE result_records SET status = $1, updated_at = $2, approved_by = $3, approved_at = $4 WHERE class_id = $5 AND session = $6 AND term = $7 AND subject_id = $8 AND status = $9")).
		WithArgs(models.ResultStatusApproved, at, "admin-1", at, "jss1", "2025/2026", models.TermFirst, "math", models.ResultStatusSubmitted).
		WillReturnResult(sqlmock.NewResult(0, 12))

	affected, err := repo.Transition(context.Background(), models.ResultScope{ClassID: "jss1", SubjectID: "math", Term: models.TermFirst, Session: "2025/2026"}, models.ResultStatusSubmitted, models.ResultStatusApproved, "admin-1", at)
	require.NoError(t, err)
	assert.EqualValues(t, 12, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryTransitionPrintWholeClass(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE result_records SET status = $1, updated_at = $2, printed_at = $3 WHERE class_id = $4 AND session = $5 AND term = $6 AND status = $7")).
		WithArgs(models.ResultStatusPrinted, at, at, "jss1", "2025/2026", models.TermFirst, models.ResultStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.Transition(context.Background(), models.ResultScope{ClassID: "jss1", Term: models.TermFirst, Session: "2025/2026"}, models.ResultStatusApproved, models.ResultStatusPrinted, "admin-1", at)
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM result_records WHERE class_id = $1 AND session = $2 AND term = $3 GROUP BY status")).
		WithArgs("jss1", "2025/2026", models.TermFirst).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("approved", 4).AddRow("printed", 2))

	counts, err := repo.CountByStatus(context.Background(), models.ResultScope{ClassID: "jss1", Term: models.TermFirst, Session: "2025/2026"})
	require.NoError(t, err)
	assert.Equal(t, 4, counts[models.ResultStatusApproved])
	assert.Equal(t, 2, counts[models.ResultStatusPrinted])
	assert.Zero(t, counts[models.ResultStatusSubmitted])
	assert.NoError(t, mock.ExpectationsWereMet())
}
