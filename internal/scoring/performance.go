package scoring

import "github.com/noah-isme/sma-results-api/internal/models"

// Options tune how a class performance view is built.
type Options struct {
	Session   string
	Term      models.Term
	TiePolicy TiePolicy
}

// BuildClassPerformance aggregates, ranks and summarises one class. Only records
// matching the class, session, optional term and a roster subject are used;
// lifecycle filtering is the caller's job.
func BuildClassPerformance(class models.Class, students []models.Student, subjects []models.Subject, records []models.ResultRecord, opts Options) models.ClassPerformance {
	perf := models.ClassPerformance{
		ClassID:   class.ID,
		ClassName: class.Name,
		Session:   opts.Session,
		Term:      opts.Term,
		Subjects:  make([]models.SubjectColumn, 0, len(subjects)),
	}

	known := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		known[subject.ID] = struct{}{}
		perf.Subjects = append(perf.Subjects, models.SubjectColumn{ID: subject.ID, Code: subject.Code, Name: subject.Name})
	}

	byStudent := make(map[string][]models.ResultRecord, len(students))
	for _, record := range records {
		if record.ClassID != class.ID {
			continue
		}
		if opts.Session != "" && record.Session != opts.Session {
			continue
		}
		if opts.Term != "" && record.Term != opts.Term {
			continue
		}
		if _, ok := known[record.SubjectID]; !ok {
			continue
		}
		byStudent[record.StudentID] = append(byStudent[record.StudentID], record)
	}

	summaries := make([]models.StudentSummary, 0, len(students))
	for _, student := range students {
		summaries = append(summaries, Summarize(student, byStudent[student.ID]))
	}

	perf.Students = Rank(summaries, opts.TiePolicy)
	perf.Stats = Statistics(perf.Students)
	return perf
}

// FindStudent returns the ranked summary of one student in the view.
func FindStudent(perf models.ClassPerformance, studentID string) (models.StudentSummary, bool) {
	for _, student := range perf.Students {
		if student.StudentID == studentID {
			return student, true
		}
	}
	return models.StudentSummary{}, false
}
