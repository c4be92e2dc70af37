package models

// Grade is the letter band derived from a percentage.
type Grade string

const (
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeD  Grade = "D"
	GradeE  Grade = "E"
	GradeF  Grade = "F"
	GradeNA Grade = "N/A"
)

// GradeBands lists every band in report order, N/A last.
var GradeBands = []Grade{GradeA, GradeB, GradeC, GradeD, GradeE, GradeF, GradeNA}

// StudentSummary is the derived per-student view for a class, session and optional term.
type StudentSummary struct {
	StudentID       string                  `json:"student_id"`
	AdmissionNumber string                  `json:"admission_number"`
	Name            string                  `json:"name"`
	TermScores      map[string]map[Term]int `json:"term_scores"`
	Cumulative      map[string]int          `json:"cumulative"`
	TotalAverage    int                     `json:"total_average"`
	Grade           Grade                   `json:"grade"`
	Position        int                     `json:"position"`
	HasResults      bool                    `json:"has_results"`
}

// SubjectColumn identifies a subject column on the broadsheet.
type SubjectColumn struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ClassStatistics summarises the ranked student list.
type ClassStatistics struct {
	Average     float64       `json:"average"`
	Highest     int           `json:"highest"`
	Lowest      int           `json:"lowest"`
	Counted     int           `json:"counted"`
	Total       int           `json:"total"`
	GradeCounts map[Grade]int `json:"grade_counts"`
}

// ClassPerformance is the ranked class view rendered on the broadsheet.
type ClassPerformance struct {
	ClassID   string           `json:"class_id"`
	ClassName string           `json:"class_name"`
	Session   string           `json:"session"`
	Term      Term             `json:"term,omitempty"`
	Subjects  []SubjectColumn  `json:"subjects"`
	Students  []StudentSummary `json:"students"`
	Stats     ClassStatistics  `json:"stats"`
}

// PerformanceFilter selects the records that feed a class performance view.
type PerformanceFilter struct {
	ClassID        string `json:"class_id"`
	Session        string `json:"session"`
	Term           Term   `json:"term,omitempty"`
	TiePolicy      string `json:"tie_policy,omitempty"`
	IncludePending bool   `json:"include_pending,omitempty"`
}
