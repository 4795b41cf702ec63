package models

import "time"

// AuditAction constants represent the enrollment action vocabulary.
const (
	AuditActionEnroll            = "enroll"
	AuditActionDrop              = "drop"
	AuditActionWaitlistPromoted  = "waitlist_promoted"
	AuditActionAddToCart         = "add_to_cart"
	AuditActionRemoveFromCart    = "remove_from_cart"
	AuditActionClearCart         = "clear_cart"
	AuditActionEnrollFromCart    = "enroll_from_cart"
	AuditActionViewCourses       = "view_courses"
	AuditActionSearchCourses     = "search_courses"
	AuditActionViewCart          = "view_cart"
	AuditActionViewWaitlist      = "view_waitlist"
	AuditActionAdminEnroll       = "admin_enroll"
	AuditActionAdminDrop         = "admin_drop"
	AuditActionCompleteCourse    = "complete_course"
	AuditActionCourseCreated     = "course_created"
	AuditActionApprovalSubmitted = "approval_submitted"
	AuditActionApprovalApproved  = "approval_approved"
	AuditActionApprovalRejected  = "approval_rejected"
	AuditActionApprovalRevision  = "approval_revision_requested"
)

// AuditLog is an append-only record of an enrollment decision or approval
// transition. Entries are committed within the same transaction as the state
// change they describe; there is no update or delete path.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
	SectionID *string   `db:"section_id" json:"section_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Details   []byte    `db:"details" json:"details,omitempty"`
	IPAddress string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// AuditFilter constrains audit listings.
type AuditFilter struct {
	StudentID string
	CourseID  string
	Action    string
	Page      int
	PageSize  int
}
