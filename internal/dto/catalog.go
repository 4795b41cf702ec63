package dto

import "time"

// CreateCourseRequest adds a course to the catalog.
type CreateCourseRequest struct {
	Code            string     `json:"code" validate:"required"`
	Name            string     `json:"name" validate:"required"`
	Credits         int        `json:"credits"`
	Department      string     `json:"department"`
	InstructorID    *string    `json:"instructor_id,omitempty"`
	EnrollmentLimit int        `json:"enrollment_limit" validate:"required,min=1"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Restricted      bool       `json:"restricted"`
	GradingScale    *string    `json:"grading_scale,omitempty"`
}
