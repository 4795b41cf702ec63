package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-api/internal/models"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
)

type cartStore interface {
	Find(ctx context.Context, studentID, courseID string) (*models.CartItem, error)
	Insert(ctx context.Context, item *models.CartItem) error
	Delete(ctx context.Context, studentID, courseID string) error
	Clear(ctx context.Context, studentID string) error
	List(ctx context.Context, studentID string) ([]models.CartItemDetail, error)
}

type cartEnrollmentStore interface {
	FindCurrentByCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// cartTxStores bundles the repositories bound to one open transaction.
type cartTxStores struct {
	carts       cartStore
	enrollments cartEnrollmentStore
	audits      auditAppender
}

// CartService manages the per-student staging set of course intents. Cart
// writes and their audit entries commit in one transaction.
type CartService struct {
	db      *sqlx.DB
	stores  func(tx *sqlx.Tx) cartTxStores
	carts   cartStore
	courses courseFinder
	audits  auditAppender
	logger  *zap.Logger
}

// NewCartService constructs CartService over the shared pool.
func NewCartService(db *sqlx.DB, stores func(tx *sqlx.Tx) cartTxStores, carts cartStore, courses courseFinder, audits auditAppender, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{db: db, stores: stores, carts: carts, courses: courses, audits: audits, logger: logger}
}

// Add stages a course intent. Adding an item that is already present is a
// no-op success; a student already enrolled or waitlisted on the course gets
// a denial as a value, not an error.
func (s *CartService) Add(ctx context.Context, principal *models.Principal, studentID, courseID string) (models.Decision, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Decision{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	var decision models.Decision
	err = s.inTx(ctx, func(stores cartTxStores) error {
		existing, err := stores.enrollments.FindCurrentByCourse(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		if existing != nil {
			reason := models.DenyAlreadyEnrolled
			if existing.Status == models.EnrollmentStatusWaitlisted {
				reason = models.DenyAlreadyWaitlisted
			}
			decision = models.Deny(reason, course.Code)
			return s.auditCart(ctx, stores.audits, principal, studentID, &courseID,
				models.AuditActionAddToCart, map[string]interface{}{"outcome": decision.Kind, "reason": decision.Reason})
		}

		item, err := stores.carts.Find(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		if item == nil {
			if err := stores.carts.Insert(ctx, &models.CartItem{StudentID: studentID, CourseID: courseID}); err != nil {
				return err
			}
		}
		decision = models.Allow()
		return s.auditCart(ctx, stores.audits, principal, studentID, &courseID,
			models.AuditActionAddToCart, map[string]interface{}{"outcome": decision.Kind, "course_code": course.Code})
	})
	if err != nil {
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add to cart")
	}
	return decision, nil
}

// Remove deletes a staged intent. Removing an absent item succeeds.
func (s *CartService) Remove(ctx context.Context, principal *models.Principal, studentID, courseID string) error {
	err := s.inTx(ctx, func(stores cartTxStores) error {
		if err := stores.carts.Delete(ctx, studentID, courseID); err != nil {
			return err
		}
		return s.auditCart(ctx, stores.audits, principal, studentID, &courseID, models.AuditActionRemoveFromCart, nil)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove from cart")
	}
	return nil
}

// Clear drops every staged intent for the student.
func (s *CartService) Clear(ctx context.Context, principal *models.Principal, studentID string) error {
	err := s.inTx(ctx, func(stores cartTxStores) error {
		if err := stores.carts.Clear(ctx, studentID); err != nil {
			return err
		}
		return s.auditCart(ctx, stores.audits, principal, studentID, nil, models.AuditActionClearCart, nil)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear cart")
	}
	return nil
}

// List returns the student's cart ordered by added_at ascending.
func (s *CartService) List(ctx context.Context, principal *models.Principal, studentID string) ([]models.CartItemDetail, error) {
	items, err := s.carts.List(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cart")
	}
	if s.audits != nil && principal != nil {
		if err := s.auditCart(ctx, s.audits, principal, studentID, nil, models.AuditActionViewCart, nil); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return items, nil
}

func (s *CartService) inTx(ctx context.Context, fn func(stores cartTxStores) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cart tx: %w", err)
	}
	if err := fn(s.stores(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("cart tx rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cart tx: %w", err)
	}
	return nil
}

func (s *CartService) auditCart(ctx context.Context, audits auditAppender, principal *models.Principal, studentID string, courseID *string, action string, details map[string]interface{}) error {
	entry := &models.AuditLog{
		StudentID: studentID,
		CourseID:  courseID,
		Action:    action,
	}
	if principal != nil {
		entry.ActorID = &principal.UserID
		entry.IPAddress = principal.IP
		entry.UserAgent = principal.UserAgent
	}
	if details != nil {
		entry.Details, _ = json.Marshal(details)
	}
	return audits.Create(ctx, entry)
}
