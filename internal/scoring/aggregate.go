package scoring

import "github.com/noah-isme/sma-results-api/internal/models"

// Summarize builds one student's summary from their records in a class and session.
// Terms without a record are left out of a subject's mean rather than counted as zero,
// and a student without any record gets a total of 0 graded N/A.
func Summarize(student models.Student, records []models.ResultRecord) models.StudentSummary {
	summary := models.StudentSummary{
		StudentID:       student.ID,
		AdmissionNumber: student.AdmissionNumber,
		Name:            student.FullName(),
		TermScores:      make(map[string]map[models.Term]int),
		Cumulative:      make(map[string]int),
		Grade:           models.GradeNA,
	}

	latest := make(map[string]map[models.Term]models.ResultRecord)
	for _, record := range records {
		if record.StudentID != student.ID {
			continue
		}
		byTerm, ok := latest[record.SubjectID]
		if !ok {
			byTerm = make(map[models.Term]models.ResultRecord)
			latest[record.SubjectID] = byTerm
		}
		if existing, seen := byTerm[record.Term]; seen && existing.UpdatedAt.After(record.UpdatedAt) {
			continue
		}
		byTerm[record.Term] = record
	}

	subjectTotal := 0
	for subjectID, byTerm := range latest {
		scores := make(map[models.Term]int, len(byTerm))
		sum := 0
		for term, record := range byTerm {
			scores[term] = record.Percentage
			sum += record.Percentage
		}
		summary.TermScores[subjectID] = scores
		cumulative := roundInt(float64(sum) / float64(len(byTerm)))
		summary.Cumulative[subjectID] = cumulative
		subjectTotal += cumulative
	}

	if len(summary.Cumulative) == 0 {
		return summary
	}
	summary.HasResults = true
	summary.TotalAverage = roundInt(float64(subjectTotal) / float64(len(summary.Cumulative)))
	summary.Grade = GradeFor(float64(summary.TotalAverage))
	return summary
}
