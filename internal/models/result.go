package models

import "time"

// Term identifies one of the three fixed terms of a session.
type Term string

const (
	TermFirst  Term = "First Term"
	TermSecond Term = "Second Term"
	TermThird  Term = "Third Term"
)

// Terms lists the terms in calendar order.
var Terms = []Term{TermFirst, TermSecond, TermThird}

// Valid reports whether t is one of the fixed terms.
func (t Term) Valid() bool {
	switch t {
	case TermFirst, TermSecond, TermThird:
		return true
	default:
		return false
	}
}

// ResultStatus tracks a result record through its publication lifecycle.
type ResultStatus string

const (
	ResultStatusSubmitted ResultStatus = "submitted"
	ResultStatusApproved  ResultStatus = "approved"
	ResultStatusPrinted   ResultStatus = "printed"
)

// CanTransitionTo enforces the forward-only submitted -> approved -> printed chain.
func (s ResultStatus) CanTransitionTo(next ResultStatus) bool {
	switch s {
	case ResultStatusSubmitted:
		return next == ResultStatusApproved
	case ResultStatusApproved:
		return next == ResultStatusPrinted
	default:
		return false
	}
}

// Published reports whether the record counts towards class performance.
func (s ResultStatus) Published() bool {
	return s == ResultStatusApproved || s == ResultStatusPrinted
}

// ResultRecord is one score row per student, subject, class, term and session.
type ResultRecord struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	SubjectID   string       `db:"subject_id" json:"subject_id"`
	ClassID     string       `db:"class_id" json:"class_id"`
	Term        Term         `db:"term" json:"term"`
	Session     string       `db:"session" json:"session"`
	Test1       float64      `db:"test1" json:"test1"`
	Test2       float64      `db:"test2" json:"test2"`
	Exam        float64      `db:"exam" json:"exam"`
	TotalScore  float64      `db:"total_score" json:"total_score"`
	Percentage  int          `db:"percentage" json:"percentage"`
	Status      ResultStatus `db:"status" json:"status"`
	SubmittedBy string       `db:"submitted_by" json:"submitted_by"`
	ApprovedBy  *string      `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time   `db:"approved_at" json:"approved_at,omitempty"`
	PrintedAt   *time.Time   `db:"printed_at" json:"printed_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// ResultFilter scopes result listing queries.
type ResultFilter struct {
	ClassID   string
	SubjectID string
	StudentID string
	Term      Term
	Session   string
	Statuses  []ResultStatus
	Page      int
	PageSize  int
}

// ResultScope addresses the granularity at which approval and printing operate.
type ResultScope struct {
	ClassID   string `json:"class_id" validate:"required"`
	SubjectID string `json:"subject_id,omitempty"`
	Term      Term   `json:"term" validate:"required"`
	Session   string `json:"session" validate:"required"`
}
