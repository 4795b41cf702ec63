package models

import "time"

// ApprovalType enumerates supported override categories.
type ApprovalType string

const (
	ApprovalTypePrerequisiteOverride  ApprovalType = "PREREQUISITE_OVERRIDE"
	ApprovalTypeCapacityOverride      ApprovalType = "CAPACITY_OVERRIDE"
	ApprovalTypeTimePeriodOverride    ApprovalType = "TIME_PERIOD_OVERRIDE"
	ApprovalTypeRestrictedCourse      ApprovalType = "RESTRICTED_COURSE"
	ApprovalTypeAcademicPlanException ApprovalType = "ACADEMIC_PLAN_EXCEPTION"
	ApprovalTypeOther                 ApprovalType = "OTHER"
)

// ValidApprovalType reports whether t is a recognised approval type.
func ValidApprovalType(t ApprovalType) bool {
	switch t {
	case ApprovalTypePrerequisiteOverride,
		ApprovalTypeCapacityOverride,
		ApprovalTypeTimePeriodOverride,
		ApprovalTypeRestrictedCourse,
		ApprovalTypeAcademicPlanException,
		ApprovalTypeOther:
		return true
	}
	return false
}

// ApprovalStatus captures workflow states for override requests.
// APPROVED and REJECTED are terminal; NEEDS_REVISION may return to PENDING
// via resubmission.
type ApprovalStatus string

const (
	ApprovalStatusPending       ApprovalStatus = "PENDING"
	ApprovalStatusApproved      ApprovalStatus = "APPROVED"
	ApprovalStatusRejected      ApprovalStatus = "REJECTED"
	ApprovalStatusNeedsRevision ApprovalStatus = "NEEDS_REVISION"
)

// ApprovalRequest is a faculty-reviewed exception to one eligibility rule
// for one student/course pair.
type ApprovalRequest struct {
	ID                  string         `db:"id" json:"id"`
	StudentID           string         `db:"student_id" json:"student_id"`
	CourseID            string         `db:"course_id" json:"course_id"`
	FacultyID           string         `db:"faculty_id" json:"faculty_id"`
	Type                ApprovalType   `db:"type" json:"type"`
	Status              ApprovalStatus `db:"status" json:"status"`
	Reason              string         `db:"reason" json:"reason"`
	SupportingDocuments []byte         `db:"supporting_documents" json:"supporting_documents,omitempty"`
	ReviewerNotes       *string        `db:"reviewer_notes" json:"reviewer_notes,omitempty"`
	ApprovalConditions  *string        `db:"approval_conditions" json:"approval_conditions,omitempty"`
	SubmittedAt         time.Time      `db:"submitted_at" json:"submitted_at"`
	ReviewedAt          *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ApprovalFilter constrains listing queries.
type ApprovalFilter struct {
	FacultyID string
	StudentID string
	CourseID  string
	Status    ApprovalStatus
	Page      int
	PageSize  int
}
