package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-results-api/internal/models"
)

func record(studentID, subjectID string, term models.Term, percentage int) models.ResultRecord {
	return models.ResultRecord{
		StudentID:  studentID,
		SubjectID:  subjectID,
		ClassID:    "jss1",
		Term:       term,
		Session:    "2025/2026",
		Percentage: percentage,
		Status:     models.ResultStatusApproved,
	}
}

func TestSummarizeExcludesMissingTerms(t *testing.T) {
	student := models.Student{ID: "s1", AdmissionNumber: "ADM/001", FirstName: "Ada", LastName: "Obi"}
	summary := Summarize(student, []models.ResultRecord{
		record("s1", "mth", models.TermFirst, 70),
		record("s1", "mth", models.TermThird, 80),
	})

	assert.True(t, summary.HasResults)
	assert.Equal(t, 75, summary.Cumulative["mth"])
	assert.Equal(t, 75, summary.TotalAverage)
	assert.Equal(t, models.GradeB, summary.Grade)
	assert.Equal(t, "Ada Obi", summary.Name)
	assert.Equal(t, map[models.Term]int{models.TermFirst: 70, models.TermThird: 80}, summary.TermScores["mth"])
}

func TestSummarizeAveragesRoundedSubjectScores(t *testing.T) {
	student := models.Student{ID: "s1"}
	summary := Summarize(student, []models.ResultRecord{
		record("s1", "mth", models.TermFirst, 71),
		record("s1", "mth", models.TermSecond, 72),
		record("s1", "eng", models.TermFirst, 60),
		record("s2", "eng", models.TermFirst, 10),
	})

	assert.Equal(t, 72, summary.Cumulative["mth"])
	assert.Equal(t, 60, summary.Cumulative["eng"])
	assert.Equal(t, 66, summary.TotalAverage)
	assert.Equal(t, models.GradeC, summary.Grade)
}

func TestSummarizeWithoutResultsIsNotApplicable(t *testing.T) {
	summary := Summarize(models.Student{ID: "s1"}, nil)
	assert.False(t, summary.HasResults)
	assert.Equal(t, 0, summary.TotalAverage)
	assert.Equal(t, models.GradeNA, summary.Grade)

	zero := Summarize(models.Student{ID: "s2"}, []models.ResultRecord{record("s2", "mth", models.TermFirst, 0)})
	assert.True(t, zero.HasResults)
	assert.Equal(t, 0, zero.TotalAverage)
	assert.Equal(t, models.GradeF, zero.Grade)
}

func TestSummarizeLatestRecordWinsWithinTerm(t *testing.T) {
	older := record("s1", "mth", models.TermFirst, 40)
	older.UpdatedAt = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	newer := record("s1", "mth", models.TermFirst, 90)
	newer.UpdatedAt = time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)

	summary := Summarize(models.Student{ID: "s1"}, []models.ResultRecord{newer, older})
	assert.Equal(t, 90, summary.Cumulative["mth"])
}
