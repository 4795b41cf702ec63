package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. DROPPED and COMPLETED are terminal.
const (
	EnrollmentStatusActive     EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
)

// EnrollmentType records how the enrollment came to exist.
type EnrollmentType string

const (
	EnrollmentTypeRegular  EnrollmentType = "REGULAR"
	EnrollmentTypeWaitlist EnrollmentType = "WAITLIST"
	EnrollmentTypeOverride EnrollmentType = "OVERRIDE"
	EnrollmentTypeTransfer EnrollmentType = "TRANSFER"
)

// Enrollment captures a student's registration on a course, optionally
// scoped to a section. At most one ACTIVE or WAITLISTED enrollment may exist
// per (student, course, section).
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	SectionID        *string          `db:"section_id" json:"section_id,omitempty"`
	PeriodID         *string          `db:"period_id" json:"period_id,omitempty"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Type             EnrollmentType   `db:"enrollment_type" json:"enrollment_type"`
	Grade            *string          `db:"grade" json:"grade,omitempty"`
	WaitlistPosition *int             `db:"waitlist_position" json:"waitlist_position,omitempty"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DropDate         *time.Time       `db:"drop_date" json:"drop_date,omitempty"`
	CompletionDate   *time.Time       `db:"completion_date" json:"completion_date,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	SectionID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CommitReport summarises the per-item outcomes of enroll_from_cart.
type CommitReport struct {
	Enrolled   []CommitOutcome `json:"enrolled"`
	Waitlisted []CommitOutcome `json:"waitlisted"`
	Denied     []CommitOutcome `json:"denied"`
}

// CommitOutcome is one cart item's enrollment result.
type CommitOutcome struct {
	CourseID   string     `json:"course_id"`
	CourseCode string     `json:"course_code,omitempty"`
	Position   int        `json:"position,omitempty"`
	Reason     DenyReason `json:"reason,omitempty"`
}

// DropResult reports the outcome of a drop, including any promotion the
// freed seat triggered.
type DropResult struct {
	Dropped  *Enrollment `json:"dropped"`
	Promoted *Enrollment `json:"promoted,omitempty"`
}

// WaitlistActionResult is the per-student outcome of waitlist management.
type WaitlistActionResult struct {
	StudentID string `json:"student_id"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}
