package models

import "time"

// Student represents a learner registered in the institution. Distinct from
// the user record that authenticates them.
type Student struct {
	ID               string     `db:"id" json:"id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	FullName         string     `db:"full_name" json:"full_name"`
	Program          string     `db:"program" json:"program"`
	AdvisorID        *string    `db:"advisor_id" json:"advisor_id,omitempty"`
	GPA              float64    `db:"gpa" json:"gpa"`
	StudentGroup     string     `db:"student_group" json:"student_group"`
	LibraryCard      *string    `db:"library_card" json:"library_card,omitempty"`
	GraduationTarget *time.Time `db:"graduation_target" json:"graduation_target,omitempty"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
