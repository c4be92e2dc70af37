package models

import "time"

// Student represents a learner on a class roster.
type Student struct {
	ID              string    `db:"id" json:"id"`
	AdmissionNumber string    `db:"admission_number" json:"admission_number"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	ClassID         string    `db:"class_id" json:"class_id"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last names.
func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID  string
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
