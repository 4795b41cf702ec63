package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-api/internal/models"
)

func openSnapshot() EligibilitySnapshot {
	return EligibilitySnapshot{
		CourseFound:     true,
		EnrollmentLimit: 30,
		ActiveCount:     10,
		PeriodOpen:      true,
		PeriodEnforced:  true,
		PrereqsEnforced: true,
	}
}

func TestEvaluateAllow(t *testing.T) {
	decision := Evaluate(openSnapshot())
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

func TestEvaluateCourseNotFound(t *testing.T) {
	snap := openSnapshot()
	snap.CourseFound = false
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionDeny, decision.Kind)
	assert.Equal(t, models.DenyNotFound, decision.Reason)
}

func TestEvaluateExistingEnrollment(t *testing.T) {
	snap := openSnapshot()
	snap.Existing = &models.Enrollment{Status: models.EnrollmentStatusActive}
	decision := Evaluate(snap)
	assert.Equal(t, models.DenyAlreadyEnrolled, decision.Reason)

	snap.Existing = &models.Enrollment{Status: models.EnrollmentStatusWaitlisted}
	decision = Evaluate(snap)
	assert.Equal(t, models.DenyAlreadyWaitlisted, decision.Reason)
}

func TestEvaluateWindowClosed(t *testing.T) {
	snap := openSnapshot()
	snap.PeriodOpen = false
	decision := Evaluate(snap)
	assert.Equal(t, models.DenyOutsideEnrollmentWindow, decision.Reason)
}

func TestEvaluateWindowClosedWithOverride(t *testing.T) {
	snap := openSnapshot()
	snap.PeriodOpen = false
	snap.Overrides = map[models.ApprovalType]bool{models.ApprovalTypeTimePeriodOverride: true}
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

func TestEvaluateWindowNotEnforced(t *testing.T) {
	snap := openSnapshot()
	snap.PeriodOpen = false
	snap.PeriodEnforced = false
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

func TestEvaluateMissingPrerequisite(t *testing.T) {
	snap := openSnapshot()
	snap.MissingPrerequisites = []string{"MATH101", "CS100"}
	decision := Evaluate(snap)
	assert.Equal(t, models.DenyMissingPrerequisite, decision.Reason)
	assert.Equal(t, "MATH101", decision.Detail)
}

func TestEvaluatePrerequisiteOverride(t *testing.T) {
	snap := openSnapshot()
	snap.MissingPrerequisites = []string{"MATH101"}
	snap.Overrides = map[models.ApprovalType]bool{models.ApprovalTypePrerequisiteOverride: true}
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

func TestEvaluatePrereqsNotEnforced(t *testing.T) {
	snap := openSnapshot()
	snap.MissingPrerequisites = []string{"MATH101"}
	snap.PrereqsEnforced = false
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

func TestEvaluateRestrictedCourse(t *testing.T) {
	snap := openSnapshot()
	snap.Restricted = true
	decision := Evaluate(snap)
	assert.Equal(t, models.DenyRestrictedCourse, decision.Reason)

	snap.Overrides = map[models.ApprovalType]bool{models.ApprovalTypeRestrictedCourse: true}
	decision = Evaluate(snap)
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

func TestEvaluateCapacityWaitlists(t *testing.T) {
	snap := openSnapshot()
	snap.ActiveCount = 30
	snap.MaxWaitlistPosition = 2
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionWaitlist, decision.Kind)
	assert.Equal(t, 3, decision.Position)
}

func TestEvaluateCapacityFirstWaitlisted(t *testing.T) {
	snap := openSnapshot()
	snap.ActiveCount = 30
	snap.MaxWaitlistPosition = 0
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionWaitlist, decision.Kind)
	assert.Equal(t, 1, decision.Position)
}

func TestEvaluateCapacityOverride(t *testing.T) {
	snap := openSnapshot()
	snap.ActiveCount = 30
	snap.Overrides = map[models.ApprovalType]bool{models.ApprovalTypeCapacityOverride: true}
	decision := Evaluate(snap)
	assert.Equal(t, models.DecisionAllow, decision.Kind)
}

// Rule ordering: an existing enrollment wins over every later rule, and the
// window rule wins over prerequisites.
func TestEvaluateRuleOrder(t *testing.T) {
	snap := openSnapshot()
	snap.Existing = &models.Enrollment{Status: models.EnrollmentStatusActive}
	snap.PeriodOpen = false
	snap.MissingPrerequisites = []string{"MATH101"}
	snap.ActiveCount = 30
	decision := Evaluate(snap)
	assert.Equal(t, models.DenyAlreadyEnrolled, decision.Reason)

	snap.Existing = nil
	decision = Evaluate(snap)
	assert.Equal(t, models.DenyOutsideEnrollmentWindow, decision.Reason)

	snap.PeriodOpen = true
	decision = Evaluate(snap)
	assert.Equal(t, models.DenyMissingPrerequisite, decision.Reason)
}
