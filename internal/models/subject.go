package models

import "time"

// Default component maxima applied when a subject has not been configured.
const (
	DefaultTest1Max = 20
	DefaultTest2Max = 20
	DefaultExamMax  = 60
)

// Subject represents an academic subject with admin-configurable score maxima.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Test1Max  float64   `db:"test1_max" json:"test1_max"`
	Test2Max  float64   `db:"test2_max" json:"test2_max"`
	ExamMax   float64   `db:"exam_max" json:"exam_max"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MaxPossible is the sum of the component maxima.
func (s Subject) MaxPossible() float64 {
	return s.Test1Max + s.Test2Max + s.ExamMax
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Active *bool
	Search string
}
