package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/pkg/config"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
)

type enrollmentStore interface {
	LockCourse(ctx context.Context, courseID string) (int, error)
	LockSection(ctx context.Context, sectionID string) (int, error)
	FindCurrent(ctx context.Context, studentID, courseID string, sectionID *string) (*models.Enrollment, error)
	CountActive(ctx context.Context, courseID string, sectionID *string) (int, error)
	MaxWaitlistPosition(ctx context.Context, courseID string, sectionID *string) (int, error)
	FirstWaitlisted(ctx context.Context, courseID string, sectionID *string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	MarkDropped(ctx context.Context, id string, at time.Time) error
	MarkCompleted(ctx context.Context, id, grade string, at time.Time) error
	Promote(ctx context.Context, id string) error
	CompactWaitlist(ctx context.Context, courseID string, sectionID *string, abovePosition int) error
	Delete(ctx context.Context, id string) error
}

type courseMetaStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindSection(ctx context.Context, id string) (*models.Section, error)
	PrerequisiteCodes(ctx context.Context, courseID string) ([]string, error)
}

type completionStore interface {
	CompletedCourseCodes(ctx context.Context, studentID string) ([]string, error)
}

type overrideStore interface {
	ApprovedOverride(ctx context.Context, studentID, courseID string, overrideType models.ApprovalType) (bool, *string, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type waitlistReader interface {
	ListWaitlisted(ctx context.Context, courseID string, sectionID *string) ([]models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// txStores bundles the repositories bound to one open transaction. The engine
// opens one serializable transaction per public operation and routes every
// state change and its audit entry through the same commit.
type txStores struct {
	enrollments enrollmentStore
	carts       cartStore
	audits      auditAppender
}

// EnrollmentService is the transactional core: enroll, drop, waitlist
// promotion, bulk commit from cart, and the privileged variants.
type EnrollmentService struct {
	db        *sqlx.DB
	stores    func(tx *sqlx.Tx) txStores
	courses   courseMetaStore
	periods   periodReader
	approvals overrideStore
	students  studentFinder
	completed completionStore
	waitlists waitlistReader
	audits    auditAppender
	metrics   *MetricsService
	cfg       config.EnrollmentConfig
	logger    *zap.Logger
}

// NewEnrollmentService constructs the engine over the shared pool.
func NewEnrollmentService(
	db *sqlx.DB,
	stores func(tx *sqlx.Tx) txStores,
	courses courseMetaStore,
	periods periodReader,
	approvals overrideStore,
	students studentFinder,
	completed completionStore,
	waitlists waitlistReader,
	audits auditAppender,
	metrics *MetricsService,
	cfg config.EnrollmentConfig,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		db:        db,
		stores:    stores,
		courses:   courses,
		periods:   periods,
		approvals: approvals,
		students:  students,
		completed: completed,
		waitlists: waitlists,
		audits:    audits,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// enrollContext is the uncontended half of an eligibility snapshot: course
// metadata, prerequisite gaps, approved overrides, and the open period. The
// contended half (counts, positions, existing enrollment) is read under the
// row lock.
type enrollContext struct {
	course     *models.Course
	sectionID  *string
	periodID   *string
	periodOpen bool
	missing    []string
	overrides  map[models.ApprovalType]bool
	conditions map[models.ApprovalType]string
}

// enrollParams carries the per-call knobs of a single enroll step.
type enrollParams struct {
	principal      *models.Principal
	studentID      string
	enforcePeriod  bool
	enforcePrereqs bool
	enrollType     models.EnrollmentType
	auditAction    string
}

var overrideTypes = []models.ApprovalType{
	models.ApprovalTypePrerequisiteOverride,
	models.ApprovalTypeCapacityOverride,
	models.ApprovalTypeTimePeriodOverride,
	models.ApprovalTypeRestrictedCourse,
}

// Enroll runs the eligibility evaluation for the student against the course
// (optionally a section) and, on allow or waitlist, records the enrollment.
// Denials come back as decisions, not errors.
func (s *EnrollmentService) Enroll(ctx context.Context, principal *models.Principal, studentID, studentGroup, courseID string, sectionID *string) (models.Decision, *models.Enrollment, error) {
	ectx, err := s.buildContext(ctx, studentID, studentGroup, courseID, sectionID)
	if err != nil {
		return models.Decision{}, nil, err
	}

	params := enrollParams{
		principal:      principal,
		studentID:      studentID,
		enforcePeriod:  s.cfg.PeriodEnforced,
		enforcePrereqs: true,
		enrollType:     models.EnrollmentTypeRegular,
		auditAction:    models.AuditActionEnroll,
	}

	var decision models.Decision
	var enrollment *models.Enrollment
	err = s.runInTx(ctx, func(stores txStores) error {
		var err error
		decision, enrollment, err = s.enrollOnce(ctx, stores, ectx, params)
		return err
	})
	if err != nil {
		return models.Decision{}, nil, s.wrapEngineErr(err, "enroll failed")
	}
	return decision, enrollment, nil
}

// Evaluate runs the eligibility rules for the student against the course
// without recording an enrollment, consuming the cart, or writing an audit
// entry. The snapshot is read under the same row lock Enroll takes, so the
// decision matches what an immediate enroll would do.
func (s *EnrollmentService) Evaluate(ctx context.Context, studentID, studentGroup, courseID string, sectionID *string) (models.Decision, error) {
	ectx, err := s.buildContext(ctx, studentID, studentGroup, courseID, sectionID)
	if err != nil {
		return models.Decision{}, err
	}

	var decision models.Decision
	err = s.runInTx(ctx, func(stores txStores) error {
		snap, err := s.buildSnapshot(ctx, stores, ectx, studentID, s.cfg.PeriodEnforced, true)
		if err != nil {
			return err
		}
		decision = Evaluate(snap)
		return nil
	})
	if err != nil {
		return models.Decision{}, s.wrapEngineErr(err, "evaluate failed")
	}
	return decision, nil
}

// Drop removes the student's active or waitlisted enrollment. When dropping
// an active enrollment actually frees a seat, the head of the waitlist is
// promoted in the same commit.
func (s *EnrollmentService) Drop(ctx context.Context, principal *models.Principal, studentID, courseID string, sectionID *string) (*models.DropResult, error) {
	return s.drop(ctx, principal, studentID, courseID, sectionID, models.AuditActionDrop)
}

// EnrollFromCart enrolls every staged cart item in added_at order inside one
// transaction. Per-item denials are reported, not rolled back; a storage
// failure aborts the whole batch.
func (s *EnrollmentService) EnrollFromCart(ctx context.Context, principal *models.Principal, studentID, studentGroup string) (*models.CommitReport, error) {
	var report *models.CommitReport
	err := s.runInTx(ctx, func(stores txStores) error {
		report = &models.CommitReport{
			Enrolled:   []models.CommitOutcome{},
			Waitlisted: []models.CommitOutcome{},
			Denied:     []models.CommitOutcome{},
		}
		items, err := stores.carts.List(ctx, studentID)
		if err != nil {
			return err
		}
		params := enrollParams{
			principal:      principal,
			studentID:      studentID,
			enforcePeriod:  s.cfg.PeriodEnforced,
			enforcePrereqs: true,
			enrollType:     models.EnrollmentTypeRegular,
			auditAction:    models.AuditActionEnroll,
		}
		for _, item := range items {
			ectx, err := s.buildContext(ctx, studentID, studentGroup, item.CourseID, nil)
			if err != nil {
				return err
			}
			decision, _, err := s.enrollOnce(ctx, stores, ectx, params)
			if err != nil {
				return err
			}
			outcome := models.CommitOutcome{CourseID: item.CourseID, CourseCode: item.CourseCode}
			switch decision.Kind {
			case models.DecisionAllow:
				report.Enrolled = append(report.Enrolled, outcome)
			case models.DecisionWaitlist:
				outcome.Position = decision.Position
				report.Waitlisted = append(report.Waitlisted, outcome)
			default:
				outcome.Reason = decision.Reason
				report.Denied = append(report.Denied, outcome)
			}
		}
		details, _ := json.Marshal(map[string]interface{}{
			"enrolled":   len(report.Enrolled),
			"waitlisted": len(report.Waitlisted),
			"denied":     len(report.Denied),
		})
		return stores.audits.Create(ctx, newAuditEntry(principal, studentID, nil, nil, models.AuditActionEnrollFromCart, details))
	})
	if err != nil {
		return nil, s.wrapEngineErr(err, "cart commit failed")
	}
	return report, nil
}

// AdminAdd enrolls a student on behalf of a privileged caller, bypassing the
// enrollment window and prerequisite rules. Uniqueness and capacity still
// apply; a full course waitlists the student as usual.
func (s *EnrollmentService) AdminAdd(ctx context.Context, principal *models.Principal, courseID, studentID string, sectionID *string) (models.Decision, *models.Enrollment, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Decision{}, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return models.Decision{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	ectx, err := s.buildContext(ctx, studentID, student.StudentGroup, courseID, sectionID)
	if err != nil {
		return models.Decision{}, nil, err
	}

	params := enrollParams{
		principal:      principal,
		studentID:      studentID,
		enforcePeriod:  false,
		enforcePrereqs: false,
		enrollType:     models.EnrollmentTypeOverride,
		auditAction:    models.AuditActionAdminEnroll,
	}

	var decision models.Decision
	var enrollment *models.Enrollment
	err = s.runInTx(ctx, func(stores txStores) error {
		var err error
		decision, enrollment, err = s.enrollOnce(ctx, stores, ectx, params)
		return err
	})
	if err != nil {
		return models.Decision{}, nil, s.wrapEngineErr(err, "admin enroll failed")
	}
	return decision, enrollment, nil
}

// AdminRemove drops a student on behalf of a privileged caller. Promotion of
// the waitlist head happens identically to a self-drop.
func (s *EnrollmentService) AdminRemove(ctx context.Context, principal *models.Principal, courseID, studentID string, sectionID *string) (*models.DropResult, error) {
	return s.drop(ctx, principal, studentID, courseID, sectionID, models.AuditActionAdminDrop)
}

// WaitlistManage approves or rejects named waitlisted students on a course.
// Approvals promote in the supplied order until capacity runs out; rejects
// delete the waitlisted enrollment and compact positions.
func (s *EnrollmentService) WaitlistManage(ctx context.Context, principal *models.Principal, courseID string, sectionID *string, action string, studentIDs []string) ([]models.WaitlistActionResult, error) {
	var results []models.WaitlistActionResult
	err := s.runInTx(ctx, func(stores txStores) error {
		results = results[:0]
		limit, err := s.lockTarget(ctx, stores, courseID, sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return err
		}
		active, err := stores.enrollments.CountActive(ctx, courseID, sectionID)
		if err != nil {
			return err
		}

		for _, studentID := range studentIDs {
			current, err := stores.enrollments.FindCurrent(ctx, studentID, courseID, sectionID)
			if err != nil {
				return err
			}
			if current == nil || current.Status != models.EnrollmentStatusWaitlisted {
				results = append(results, models.WaitlistActionResult{StudentID: studentID, Outcome: "error", Error: "not waitlisted"})
				continue
			}

			switch action {
			case "approve":
				if active >= limit {
					results = append(results, models.WaitlistActionResult{StudentID: studentID, Outcome: "error", Error: "capacity exhausted"})
					continue
				}
				if err := s.promote(ctx, stores, principal, current); err != nil {
					return err
				}
				active++
				results = append(results, models.WaitlistActionResult{StudentID: studentID, Outcome: "promoted"})
			case "reject":
				if err := stores.enrollments.Delete(ctx, current.ID); err != nil {
					return err
				}
				if current.WaitlistPosition != nil {
					if err := stores.enrollments.CompactWaitlist(ctx, courseID, sectionID, *current.WaitlistPosition); err != nil {
						return err
					}
				}
				if err := stores.audits.Create(ctx, newAuditEntry(principal, studentID, &courseID, sectionID, models.AuditActionAdminDrop,
					mustDetails(map[string]interface{}{"via": "waitlist_reject"}))); err != nil {
					return err
				}
				results = append(results, models.WaitlistActionResult{StudentID: studentID, Outcome: "rejected"})
			default:
				return appErrors.Clone(appErrors.ErrValidation, "unknown waitlist action")
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapEngineErr(err, "waitlist manage failed")
	}
	return results, nil
}

// ListWaitlist returns the waitlisted enrollments on a course in position
// order.
func (s *EnrollmentService) ListWaitlist(ctx context.Context, principal *models.Principal, courseID string, sectionID *string) ([]models.Enrollment, error) {
	waitlisted, err := s.waitlists.ListWaitlisted(ctx, courseID, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	if s.audits != nil && principal != nil {
		entry := newAuditEntry(principal, principal.StudentID, &courseID, sectionID, models.AuditActionViewWaitlist, nil)
		if err := s.audits.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return waitlisted, nil
}

// ListEnrollments returns enrollment details matching the filter.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.waitlists.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Complete transitions an active enrollment to completed with a final grade.
func (s *EnrollmentService) Complete(ctx context.Context, principal *models.Principal, studentID, courseID, grade string) (*models.Enrollment, error) {
	var completed *models.Enrollment
	err := s.runInTx(ctx, func(stores txStores) error {
		if _, err := s.lockTarget(ctx, stores, courseID, nil); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return err
		}
		current, err := stores.enrollments.FindCurrent(ctx, studentID, courseID, nil)
		if err != nil {
			return err
		}
		if current == nil || current.Status != models.EnrollmentStatusActive {
			return appErrors.Clone(appErrors.ErrNotFound, "active enrollment not found")
		}
		now := time.Now().UTC()
		if err := stores.enrollments.MarkCompleted(ctx, current.ID, grade, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "enrollment is no longer active")
			}
			return err
		}
		current.Status = models.EnrollmentStatusCompleted
		current.Grade = &grade
		current.CompletionDate = &now
		completed = current
		return stores.audits.Create(ctx, newAuditEntry(principal, studentID, &courseID, nil, models.AuditActionCompleteCourse,
			mustDetails(map[string]interface{}{"grade": grade})))
	})
	if err != nil {
		return nil, s.wrapEngineErr(err, "complete failed")
	}
	return completed, nil
}

func (s *EnrollmentService) drop(ctx context.Context, principal *models.Principal, studentID, courseID string, sectionID *string, auditAction string) (*models.DropResult, error) {
	var result *models.DropResult
	err := s.runInTx(ctx, func(stores txStores) error {
		limit, err := s.lockTarget(ctx, stores, courseID, sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return err
		}

		current, err := stores.enrollments.FindCurrent(ctx, studentID, courseID, sectionID)
		if err != nil {
			return err
		}
		if current == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}

		now := time.Now().UTC()
		wasActive := current.Status == models.EnrollmentStatusActive
		vacated := current.WaitlistPosition

		if err := stores.enrollments.MarkDropped(ctx, current.ID, now); err != nil {
			return err
		}
		current.Status = models.EnrollmentStatusDropped
		current.DropDate = &now
		current.WaitlistPosition = nil

		if !wasActive && vacated != nil {
			if err := stores.enrollments.CompactWaitlist(ctx, courseID, sectionID, *vacated); err != nil {
				return err
			}
		}

		result = &models.DropResult{Dropped: current}
		if wasActive {
			// A capacity-override enrollment can push the course above its
			// limit; dropping one of those does not free a seat.
			active, err := stores.enrollments.CountActive(ctx, courseID, sectionID)
			if err != nil {
				return err
			}
			if active < limit {
				head, err := stores.enrollments.FirstWaitlisted(ctx, courseID, sectionID)
				if err != nil {
					return err
				}
				if head != nil {
					if err := s.promote(ctx, stores, principal, head); err != nil {
						return err
					}
					result.Promoted = head
				}
			}
		}

		return stores.audits.Create(ctx, newAuditEntry(principal, studentID, &courseID, sectionID, auditAction,
			mustDetails(map[string]interface{}{"was_active": wasActive})))
	})
	if err != nil {
		return nil, s.wrapEngineErr(err, "drop failed")
	}
	return result, nil
}

// promote activates a waitlisted enrollment, re-compacts the remaining
// positions, and emits the promotion's own audit entry.
func (s *EnrollmentService) promote(ctx context.Context, stores txStores, principal *models.Principal, enrollment *models.Enrollment) error {
	if err := stores.enrollments.Promote(ctx, enrollment.ID); err != nil {
		return err
	}
	if enrollment.WaitlistPosition != nil {
		if err := stores.enrollments.CompactWaitlist(ctx, enrollment.CourseID, enrollment.SectionID, *enrollment.WaitlistPosition); err != nil {
			return err
		}
	}
	enrollment.Status = models.EnrollmentStatusActive
	enrollment.WaitlistPosition = nil

	s.metrics.RecordPromotion()
	return stores.audits.Create(ctx, newAuditEntry(principal, enrollment.StudentID, &enrollment.CourseID, enrollment.SectionID,
		models.AuditActionWaitlistPromoted, nil))
}

// buildSnapshot reads the contended half of the eligibility inputs under the
// row lock and merges them with the prepared context. A course row that
// vanished since the context was built reads as not found.
func (s *EnrollmentService) buildSnapshot(ctx context.Context, stores txStores, ectx *enrollContext, studentID string, enforcePeriod, enforcePrereqs bool) (EligibilitySnapshot, error) {
	snap := EligibilitySnapshot{
		PeriodEnforced:  enforcePeriod,
		PrereqsEnforced: enforcePrereqs,
	}
	if ectx.course == nil {
		return snap, nil
	}

	courseID := ectx.course.ID
	snap.CourseFound = true
	snap.Restricted = ectx.course.Restricted
	snap.PeriodOpen = ectx.periodOpen
	snap.MissingPrerequisites = ectx.missing
	snap.Overrides = ectx.overrides

	limit, err := s.lockTarget(ctx, stores, courseID, ectx.sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			snap.CourseFound = false
			return snap, nil
		}
		return snap, err
	}
	snap.EnrollmentLimit = limit
	if snap.Existing, err = stores.enrollments.FindCurrent(ctx, studentID, courseID, ectx.sectionID); err != nil {
		return snap, err
	}
	if snap.ActiveCount, err = stores.enrollments.CountActive(ctx, courseID, ectx.sectionID); err != nil {
		return snap, err
	}
	if snap.MaxWaitlistPosition, err = stores.enrollments.MaxWaitlistPosition(ctx, courseID, ectx.sectionID); err != nil {
		return snap, err
	}
	return snap, nil
}

// enrollOnce runs one evaluate-then-apply step under the row lock. The cart
// item for the course, if present, is consumed on allow and waitlist.
func (s *EnrollmentService) enrollOnce(ctx context.Context, stores txStores, ectx *enrollContext, p enrollParams) (models.Decision, *models.Enrollment, error) {
	snap, err := s.buildSnapshot(ctx, stores, ectx, p.studentID, p.enforcePeriod, p.enforcePrereqs)
	if err != nil {
		return models.Decision{}, nil, err
	}

	var courseID string
	if ectx.course != nil {
		courseID = ectx.course.ID
	}

	decision := Evaluate(snap)
	s.metrics.RecordDecision(string(decision.Kind), string(decision.Reason))

	var enrollment *models.Enrollment
	switch decision.Kind {
	case models.DecisionAllow:
		enrollment = &models.Enrollment{
			StudentID: p.studentID,
			CourseID:  courseID,
			SectionID: ectx.sectionID,
			PeriodID:  ectx.periodID,
			Status:    models.EnrollmentStatusActive,
			Type:      p.enrollType,
		}
		if err := stores.enrollments.Create(ctx, enrollment); err != nil {
			return models.Decision{}, nil, err
		}
	case models.DecisionWaitlist:
		position := decision.Position
		enrollment = &models.Enrollment{
			StudentID:        p.studentID,
			CourseID:         courseID,
			SectionID:        ectx.sectionID,
			PeriodID:         ectx.periodID,
			Status:           models.EnrollmentStatusWaitlisted,
			Type:             models.EnrollmentTypeWaitlist,
			WaitlistPosition: &position,
		}
		if err := stores.enrollments.Create(ctx, enrollment); err != nil {
			return models.Decision{}, nil, err
		}
	}

	if !decision.Denied() && courseID != "" {
		if err := stores.carts.Delete(ctx, p.studentID, courseID); err != nil {
			return models.Decision{}, nil, err
		}
	}

	details := map[string]interface{}{"decision": decision.Kind}
	if decision.Reason != "" {
		details["reason"] = decision.Reason
	}
	if decision.Position > 0 {
		details["position"] = decision.Position
	}
	for overrideType, conditions := range ectx.conditions {
		details["override_"+string(overrideType)] = conditions
	}

	var auditCourseID *string
	if courseID != "" {
		auditCourseID = &courseID
	}
	entry := newAuditEntry(p.principal, p.studentID, auditCourseID, ectx.sectionID, p.auditAction, mustDetails(details))
	if err := stores.audits.Create(ctx, entry); err != nil {
		return models.Decision{}, nil, err
	}
	return decision, enrollment, nil
}

// buildContext gathers the uncontended snapshot inputs: course metadata, the
// open period for the group, outstanding prerequisite codes, and approved
// overrides. A missing course yields a context that evaluates to a
// not-found denial.
func (s *EnrollmentService) buildContext(ctx context.Context, studentID, studentGroup, courseID string, sectionID *string) (*enrollContext, error) {
	ectx := &enrollContext{
		overrides:  map[models.ApprovalType]bool{},
		conditions: map[models.ApprovalType]string{},
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ectx, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	ectx.course = course

	if sectionID != nil {
		section, err := s.courses.FindSection(ctx, *sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				ectx.course = nil
				return ectx, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		if section.CourseID != courseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section does not belong to course")
		}
		ectx.sectionID = sectionID
	}

	periods, err := s.periods.ActiveAt(ctx, time.Now().UTC(), studentGroup)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment periods")
	}
	if len(periods) > 0 {
		ectx.periodOpen = true
		ectx.periodID = &periods[0].ID
	}

	prereqs, err := s.courses.PrerequisiteCodes(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	if len(prereqs) > 0 {
		done, err := s.completed.CompletedCourseCodes(ctx, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses")
		}
		completedSet := make(map[string]struct{}, len(done))
		for _, code := range done {
			completedSet[code] = struct{}{}
		}
		for _, code := range prereqs {
			if _, ok := completedSet[code]; !ok {
				ectx.missing = append(ectx.missing, code)
			}
		}
	}

	for _, overrideType := range overrideTypes {
		granted, conditions, err := s.approvals.ApprovedOverride(ctx, studentID, courseID, overrideType)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
		}
		if granted {
			ectx.overrides[overrideType] = true
			if conditions != nil {
				ectx.conditions[overrideType] = *conditions
			}
		}
	}
	return ectx, nil
}

func (s *EnrollmentService) lockTarget(ctx context.Context, stores txStores, courseID string, sectionID *string) (int, error) {
	if sectionID != nil {
		return stores.enrollments.LockSection(ctx, *sectionID)
	}
	return stores.enrollments.LockCourse(ctx, courseID)
}

// runInTx opens a serializable transaction, applies the lock timeout, and
// retries the whole operation on transient contention with exponential
// backoff up to the configured limit.
func (s *EnrollmentService) runInTx(ctx context.Context, fn func(stores txStores) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.RecordTxRetry()
			delay := s.cfg.RetryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err := s.attemptTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !appErrors.IsTransient(err) {
			return err
		}
		s.logger.Warn("transient storage contention, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		lastErr = err
	}
	return lastErr
}

func (s *EnrollmentService) attemptTx(ctx context.Context, fn func(stores txStores) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if s.cfg.LockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.cfg.LockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			s.rollback(tx)
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}
	if err := fn(s.stores(tx)); err != nil {
		s.rollback(tx)
		return classifyTxErr(err)
	}
	if err := tx.Commit(); err != nil {
		return classifyTxErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *EnrollmentService) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("tx rollback failed", zap.Error(err))
	}
}

// classifyTxErr maps serialization failures, deadlocks, and lock timeouts to
// the transient signal the retry loop acts on.
func classifyTxErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "40001", "40P01", "55P03":
			return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "storage contention")
		}
	}
	return err
}

func (s *EnrollmentService) wrapEngineErr(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func newAuditEntry(principal *models.Principal, studentID string, courseID, sectionID *string, action string, details []byte) *models.AuditLog {
	entry := &models.AuditLog{
		StudentID: studentID,
		CourseID:  courseID,
		SectionID: sectionID,
		Action:    action,
		Details:   details,
	}
	if principal != nil {
		entry.ActorID = &principal.UserID
		entry.IPAddress = principal.IP
		entry.UserAgent = principal.UserAgent
	}
	return entry
}

func mustDetails(details map[string]interface{}) []byte {
	payload, _ := json.Marshal(details)
	return payload
}
