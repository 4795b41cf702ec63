package models

import "time"

// Course represents an offered course in the catalog.
type Course struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	Name            string     `db:"name" json:"name"`
	Credits         int        `db:"credits" json:"credits"`
	Department      string     `db:"department" json:"department"`
	InstructorID    *string    `db:"instructor_id" json:"instructor_id,omitempty"`
	EnrollmentLimit int        `db:"enrollment_limit" json:"enrollment_limit"`
	StartDate       *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	Restricted      bool       `db:"restricted" json:"restricted"`
	GradingScale    *string    `db:"grading_scale" json:"grading_scale,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches a Course with prerequisite codes and schedule.
type CourseDetail struct {
	Course
	Prerequisites []string       `json:"prerequisites,omitempty"`
	Schedule      []ScheduleSlot `json:"schedule,omitempty"`
	Categories    []string       `json:"categories,omitempty"`
}

// ScheduleSlot is one day/time/location tuple of a course schedule.
type ScheduleSlot struct {
	ID        string `db:"id" json:"-"`
	CourseID  string `db:"course_id" json:"-"`
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Location  string `db:"location" json:"location"`
}

// Section is an optional per-course subdivision. When sections exist,
// capacity and enrollment apply per-section.
type Section struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	SectionNumber   string    `db:"section_number" json:"section_number"`
	InstructorID    *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	EnrollmentLimit int       `db:"enrollment_limit" json:"enrollment_limit"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// CourseFilter encapsulates catalog search parameters.
type CourseFilter struct {
	Code         string
	Name         string
	Department   string
	InstructorID string
	Credits      *int
	LimitMin     *int
	LimitMax     *int
	StartFrom    *time.Time
	StartTo      *time.Time
	EndFrom      *time.Time
	EndTo        *time.Time

	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
	Cursor    string
}
