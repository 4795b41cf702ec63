package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/service"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/pagination"
	"github.com/noah-isme/campus-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment engine over HTTP.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type enrollResponse struct {
	Decision   models.Decision    `json:"decision"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
}

// Enroll godoc
// @Summary Enroll in a course
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment target"
// @Success 200 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, enrollment, err := h.enrollments.Enroll(c.Request.Context(), principalFromContext(c),
		claims.StudentID, claims.StudentGroup, req.CourseID, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollResponse{Decision: decision, Enrollment: enrollment}, nil)
}

// Evaluate godoc
// @Summary Check enrollment eligibility without enrolling
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment target"
// @Success 200 {object} response.Envelope
// @Router /enrollments/evaluate [post]
func (h *EnrollmentHandler) Evaluate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, err := h.enrollments.Evaluate(c.Request.Context(),
		claims.StudentID, claims.StudentGroup, req.CourseID, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Drop godoc
// @Summary Drop a course
// @Tags Enrollment
// @Produce json
// @Param courseId path string true "Course ID"
// @Param sectionId query string false "Section ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{courseId} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	result, err := h.enrollments.Drop(c.Request.Context(), principalFromContext(c),
		claims.StudentID, c.Param("courseId"), sectionIDFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollment
// @Produce json
// @Param studentId query string false "Student"
// @Param courseId query string false "Course"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.SectionID = c.Query("sectionId")
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, total, err := h.enrollments.ListEnrollments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := pagination.NewPage(filter.Page, filter.PageSize, 20, 100)
	response.JSON(c, http.StatusOK, enrollments, pagination.NewMeta(page, total))
}

// Waitlist godoc
// @Summary List the waitlist for a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Param sectionId query string false "Section ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/waitlist [get]
func (h *EnrollmentHandler) Waitlist(c *gin.Context) {
	waitlisted, err := h.enrollments.ListWaitlist(c.Request.Context(), principalFromContext(c),
		c.Param("id"), sectionIDFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waitlisted, nil)
}

// WaitlistManage godoc
// @Summary Approve or reject waitlisted students
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param sectionId query string false "Section ID"
// @Param payload body dto.WaitlistManageRequest true "Action and students"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/waitlist [post]
func (h *EnrollmentHandler) WaitlistManage(c *gin.Context) {
	var req dto.WaitlistManageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.enrollments.WaitlistManage(c.Request.Context(), principalFromContext(c),
		c.Param("id"), sectionIDFromQuery(c), req.Action, req.StudentIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// AdminAdd godoc
// @Summary Enroll a student on their behalf
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body dto.AdminEnrollRequest true "Student to enroll"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students [post]
func (h *EnrollmentHandler) AdminAdd(c *gin.Context) {
	var req dto.AdminEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, enrollment, err := h.enrollments.AdminAdd(c.Request.Context(), principalFromContext(c),
		c.Param("id"), req.StudentID, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollResponse{Decision: decision, Enrollment: enrollment}, nil)
}

// AdminRemove godoc
// @Summary Drop a student on their behalf
// @Tags Enrollment
// @Produce json
// @Param courseId path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Param sectionId query string false "Section ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students/{studentId} [delete]
func (h *EnrollmentHandler) AdminRemove(c *gin.Context) {
	result, err := h.enrollments.AdminRemove(c.Request.Context(), principalFromContext(c),
		c.Param("id"), c.Param("studentId"), sectionIDFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Complete godoc
// @Summary Record a final grade for an active enrollment
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body dto.CompleteRequest true "Student and grade"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	var req dto.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Complete(c.Request.Context(), principalFromContext(c),
		req.StudentID, c.Param("id"), req.Grade)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

func sectionIDFromQuery(c *gin.Context) *string {
	if raw := c.Query("sectionId"); raw != "" {
		return &raw
	}
	return nil
}
