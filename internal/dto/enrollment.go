package dto

// EnrollRequest is the payload for direct enrollment.
type EnrollRequest struct {
	CourseID  string  `json:"course_id" validate:"required"`
	SectionID *string `json:"section_id,omitempty"`
}

// AddToCartRequest stages a course in the student's cart.
type AddToCartRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// AdminEnrollRequest enrolls a student on their behalf.
type AdminEnrollRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	SectionID *string `json:"section_id,omitempty"`
}

// CompleteRequest records a final grade, closing out an active enrollment.
type CompleteRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// WaitlistManageRequest approves or rejects waitlisted students in order.
type WaitlistManageRequest struct {
	Action     string   `json:"action" validate:"required,oneof=approve reject"`
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
}
