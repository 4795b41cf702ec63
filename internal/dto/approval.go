package dto

// SubmitApprovalRequest creates a new override request.
type SubmitApprovalRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	FacultyID string `json:"faculty_id" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
	Documents []byte `json:"documents,omitempty"`
}

// ReviewApprovalRequest carries a reviewer decision.
type ReviewApprovalRequest struct {
	Action     string `json:"action" validate:"required,oneof=approve reject request_revision"`
	Notes      string `json:"notes,omitempty"`
	Conditions string `json:"conditions,omitempty"`
}

// ResubmitApprovalRequest returns a NEEDS_REVISION request to PENDING.
type ResubmitApprovalRequest struct {
	Reason    string `json:"reason" validate:"required"`
	Documents []byte `json:"documents,omitempty"`
}
