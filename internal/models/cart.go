package models

import "time"

// CartItem stages a student's intent to enroll in a course. Unique per
// (student, course); never coexists with an active or waitlisted enrollment
// for the same pair.
type CartItem struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}

// CartItemDetail enriches CartItem with course info for listings.
type CartItemDetail struct {
	CartItem
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
	Credits    int    `db:"credits" json:"credits"`
}
