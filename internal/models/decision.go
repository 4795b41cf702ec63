package models

// DecisionKind discriminates eligibility outcomes.
type DecisionKind string

const (
	DecisionAllow    DecisionKind = "allow"
	DecisionWaitlist DecisionKind = "waitlist"
	DecisionDeny     DecisionKind = "deny"
)

// DenyReason enumerates why an enrollment intent was denied.
type DenyReason string

const (
	DenyOutsideEnrollmentWindow DenyReason = "OUTSIDE_ENROLLMENT_WINDOW"
	DenyAlreadyEnrolled         DenyReason = "ALREADY_ENROLLED"
	DenyAlreadyWaitlisted       DenyReason = "ALREADY_WAITLISTED"
	DenyMissingPrerequisite     DenyReason = "MISSING_PREREQUISITE"
	DenyCapacityReached         DenyReason = "CAPACITY_REACHED"
	DenyRestrictedCourse        DenyReason = "RESTRICTED_COURSE"
	DenyNotFound                DenyReason = "NOT_FOUND"
)

// Decision is the value returned by the eligibility evaluator. Denials are
// domain outcomes, not errors.
type Decision struct {
	Kind     DecisionKind `json:"kind"`
	Position int          `json:"position,omitempty"`
	Reason   DenyReason   `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

// Allow builds an allow decision.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// Waitlist builds a waitlist decision with a 1-based position.
func Waitlist(position int) Decision {
	return Decision{Kind: DecisionWaitlist, Position: position}
}

// Deny builds a deny decision. Detail is optional context such as the
// missing prerequisite code.
func Deny(reason DenyReason, detail string) Decision {
	return Decision{Kind: DecisionDeny, Reason: reason, Detail: detail}
}

// Denied reports whether the decision is a denial.
func (d Decision) Denied() bool {
	return d.Kind == DecisionDeny
}
