package models

import "time"

// EnrollmentPeriod is a policy-defined window during which enrollment
// actions are permitted for a student group. An empty StudentGroup applies
// to everyone.
type EnrollmentPeriod struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	StartAt      time.Time `db:"start_at" json:"start_at"`
	EndAt        time.Time `db:"end_at" json:"end_at"`
	StudentGroup string    `db:"student_group" json:"student_group,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether the period window contains the given instant.
func (p EnrollmentPeriod) Covers(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartAt) && !now.After(p.EndAt)
}
