package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
	"github.com/noah-isme/campus-api/pkg/config"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/pagination"
)

type catalogRepository interface {
	List(ctx context.Context, filter models.CourseFilter, page pagination.Page, sort pagination.Sort) ([]models.Course, int, error)
	ListAfter(ctx context.Context, filter models.CourseFilter, afterID string, size int) ([]models.Course, bool, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ListSections(ctx context.Context, courseID string) ([]models.Section, error)
	Create(ctx context.Context, course *models.Course) error
}

type periodReader interface {
	ActiveAt(ctx context.Context, now time.Time, studentGroup string) ([]models.EnrollmentPeriod, error)
}

type auditAppender interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// CatalogService serves read-side queries over courses, sections, and
// enrollment periods.
type CatalogService struct {
	courses catalogRepository
	periods periodReader
	audits  auditAppender
	cache   *CacheService
	cfg     config.EnrollmentConfig
	logger  *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(courses catalogRepository, periods periodReader, audits auditAppender, cache *CacheService, cfg config.EnrollmentConfig, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, periods: periods, audits: audits, cache: cache, cfg: cfg, logger: logger}
}

type cachedCourseList struct {
	Items []models.Course  `json:"items"`
	Meta  *pagination.Meta `json:"meta"`
}

// ListCourses returns catalog courses for an offset page.
func (s *CatalogService) ListCourses(ctx context.Context, filter models.CourseFilter, principal *models.Principal) ([]models.Course, *pagination.Meta, error) {
	page := pagination.NewPage(filter.Page, filter.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	sort := pagination.ParseSort(filter.SortBy, filter.SortOrder, repository.CourseSorts(), "created_at")

	key := courseListCacheKey(filter, page, sort)
	var cached cachedCourseList
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		s.emitReadAudit(ctx, principal, filter)
		return cached.Items, cached.Meta, nil
	}

	courses, total, err := s.courses.List(ctx, filter, page, sort)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	meta := pagination.NewMeta(page, total)

	_ = s.cache.Set(ctx, key, cachedCourseList{Items: courses, Meta: meta}, 0)
	s.emitReadAudit(ctx, principal, filter)
	return courses, meta, nil
}

// ListCoursesCursor returns catalog courses after an opaque cursor.
func (s *CatalogService) ListCoursesCursor(ctx context.Context, filter models.CourseFilter, principal *models.Principal) ([]models.Course, *pagination.CursorMeta, error) {
	size := filter.PageSize
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}

	afterID := ""
	if filter.Cursor != "" {
		field, value, err := pagination.DecodeCursor(filter.Cursor)
		if err != nil || field != "id" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid cursor")
		}
		afterID = value
	}

	courses, hasMore, err := s.courses.ListAfter(ctx, filter, afterID, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	meta := &pagination.CursorMeta{HasMore: hasMore, PageSize: size, ItemCount: len(courses)}
	if hasMore && len(courses) > 0 {
		meta.NextCursor = pagination.EncodeCursor("id", courses[len(courses)-1].ID)
	}
	s.emitReadAudit(ctx, principal, filter)
	return courses, meta, nil
}

// GetCourse returns a single course with prerequisites and schedule.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.CourseDetail, error) {
	detail, err := s.courses.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// ListSections returns the sections of a course.
func (s *CatalogService) ListSections(ctx context.Context, courseID string) ([]models.Section, error) {
	sections, err := s.courses.ListSections(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// ActivePeriods returns the enrollment periods permitting actions for the
// group at the given instant.
func (s *CatalogService) ActivePeriods(ctx context.Context, now time.Time, studentGroup string) ([]models.EnrollmentPeriod, error) {
	periods, err := s.periods.ActiveAt(ctx, now.UTC(), studentGroup)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment periods")
	}
	return periods, nil
}

// CreateCourse inserts a catalog course and drops cached listings so the new
// course is visible to the next read.
func (s *CatalogService) CreateCourse(ctx context.Context, principal *models.Principal, course *models.Course) error {
	if course.Code == "" || course.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course code and name are required")
	}
	if course.EnrollmentLimit <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "enrollment limit must be positive")
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.InvalidateCache(ctx)

	if s.audits != nil && principal != nil {
		details, _ := json.Marshal(map[string]interface{}{"code": course.Code, "name": course.Name})
		entry := &models.AuditLog{
			ActorID:   &principal.UserID,
			CourseID:  &course.ID,
			Action:    models.AuditActionCourseCreated,
			Details:   details,
			IPAddress: principal.IP,
			UserAgent: principal.UserAgent,
		}
		if err := s.audits.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return nil
}

// InvalidateCache drops cached catalog listings after a course write.
func (s *CatalogService) InvalidateCache(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, "catalog:courses:*")
}

func (s *CatalogService) emitReadAudit(ctx context.Context, principal *models.Principal, filter models.CourseFilter) {
	if s.audits == nil || principal == nil {
		return
	}
	action := models.AuditActionViewCourses
	if filtered(filter) {
		action = models.AuditActionSearchCourses
	}
	details, _ := json.Marshal(map[string]interface{}{
		"code": filter.Code, "name": filter.Name, "department": filter.Department,
	})
	entry := &models.AuditLog{
		ActorID:   &principal.UserID,
		StudentID: principal.StudentID,
		Action:    action,
		Details:   details,
		IPAddress: principal.IP,
		UserAgent: principal.UserAgent,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func filtered(f models.CourseFilter) bool {
	return f.Code != "" || f.Name != "" || f.Department != "" || f.InstructorID != "" ||
		f.Credits != nil || f.LimitMin != nil || f.LimitMax != nil ||
		f.StartFrom != nil || f.StartTo != nil || f.EndFrom != nil || f.EndTo != nil
}

func courseListCacheKey(filter models.CourseFilter, page pagination.Page, sort pagination.Sort) string {
	payload, _ := json.Marshal(struct {
		Filter models.CourseFilter
		Page   pagination.Page
		Sort   pagination.Sort
	}{filter, page, sort})
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("catalog:courses:%x", sum[:8])
}
