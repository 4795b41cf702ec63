package service

import (
	"github.com/noah-isme/campus-api/internal/models"
)

// EligibilitySnapshot is everything the evaluator needs, read under the
// course/section row lock so the counts are stable until commit.
type EligibilitySnapshot struct {
	CourseFound bool
	Restricted  bool

	EnrollmentLimit     int
	ActiveCount         int
	MaxWaitlistPosition int

	// Existing is the student's current ACTIVE or WAITLISTED enrollment on
	// the (course, section) pair, if any.
	Existing *models.Enrollment

	// PeriodOpen reports whether an active enrollment period covers now for
	// the student's group. PeriodEnforced turns the window rule off entirely
	// (configuration or admin bypass).
	PeriodOpen     bool
	PeriodEnforced bool

	// PrereqsEnforced gates the prerequisite rule; MissingPrerequisites are
	// the codes the student has not completed.
	PrereqsEnforced      bool
	MissingPrerequisites []string

	// Overrides holds the approval types the student has APPROVED requests
	// for on this course.
	Overrides map[models.ApprovalType]bool
}

func (s EligibilitySnapshot) hasOverride(t models.ApprovalType) bool {
	return s.Overrides[t]
}

// Evaluate applies the eligibility rules in order, first match wins. It is a
// pure function with no side effects; tie-breaking between concurrent
// enrollments belongs to the engine's locking, not to the evaluator.
func Evaluate(snap EligibilitySnapshot) models.Decision {
	if !snap.CourseFound {
		return models.Deny(models.DenyNotFound, "")
	}

	if snap.Existing != nil {
		if snap.Existing.Status == models.EnrollmentStatusWaitlisted {
			return models.Deny(models.DenyAlreadyWaitlisted, "")
		}
		return models.Deny(models.DenyAlreadyEnrolled, "")
	}

	if snap.PeriodEnforced && !snap.PeriodOpen && !snap.hasOverride(models.ApprovalTypeTimePeriodOverride) {
		return models.Deny(models.DenyOutsideEnrollmentWindow, "")
	}

	if snap.PrereqsEnforced && len(snap.MissingPrerequisites) > 0 && !snap.hasOverride(models.ApprovalTypePrerequisiteOverride) {
		return models.Deny(models.DenyMissingPrerequisite, snap.MissingPrerequisites[0])
	}

	if snap.Restricted && !snap.hasOverride(models.ApprovalTypeRestrictedCourse) {
		return models.Deny(models.DenyRestrictedCourse, "")
	}

	if snap.ActiveCount >= snap.EnrollmentLimit {
		if snap.hasOverride(models.ApprovalTypeCapacityOverride) {
			return models.Allow()
		}
		return models.Waitlist(snap.MaxWaitlistPosition + 1)
	}

	return models.Allow()
}
