package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/service"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/response"
)

// CatalogHandler exposes the read side of the course catalog.
type CatalogHandler struct {
	catalog *service.CatalogService
	rosters *service.RosterExportService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, rosters *service.RosterExportService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, rosters: rosters}
}

// List godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Param code query string false "Course code substring"
// @Param name query string false "Course name substring"
// @Param department query string false "Department substring"
// @Param instructorId query string false "Instructor"
// @Param credits query int false "Exact credits"
// @Param cursor query string false "Opaque cursor; switches to cursor pagination"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) List(c *gin.Context) {
	filter := courseFilterFromQuery(c)
	principal := principalFromContext(c)

	if filter.Cursor != "" {
		courses, cursor, err := h.catalog.ListCoursesCursor(c.Request.Context(), filter, principal)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSONCursor(c, http.StatusOK, courses, cursor)
		return
	}

	courses, meta, err := h.catalog.ListCourses(c.Request.Context(), filter, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, meta)
}

// Create godoc
// @Summary Add a course to the catalog
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course definition"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CatalogHandler) Create(c *gin.Context) {
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course := &models.Course{
		Code:            req.Code,
		Name:            req.Name,
		Credits:         req.Credits,
		Department:      req.Department,
		InstructorID:    req.InstructorID,
		EnrollmentLimit: req.EnrollmentLimit,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Restricted:      req.Restricted,
		GradingScale:    req.GradingScale,
	}
	if err := h.catalog.CreateCourse(c.Request.Context(), principalFromContext(c), course); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, course, nil)
}

// Get godoc
// @Summary Get course detail
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	course, err := h.catalog.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Sections godoc
// @Summary List course sections
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sections [get]
func (h *CatalogHandler) Sections(c *gin.Context) {
	sections, err := h.catalog.ListSections(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Periods godoc
// @Summary List currently open enrollment periods
// @Tags Catalog
// @Produce json
// @Param group query string false "Student group"
// @Success 200 {object} response.Envelope
// @Router /enrollment-periods/active [get]
func (h *CatalogHandler) Periods(c *gin.Context) {
	group := c.Query("group")
	if group == "" {
		if claims := claimsFromContext(c); claims != nil {
			group = claims.StudentGroup
		}
	}
	periods, err := h.catalog.ActivePeriods(c.Request.Context(), time.Now().UTC(), group)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// ExportRoster godoc
// @Summary Export course roster
// @Tags Catalog
// @Produce text/csv
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /courses/{id}/roster/export [get]
func (h *CatalogHandler) ExportRoster(c *gin.Context) {
	export, err := h.rosters.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+export.Filename)
	c.Data(http.StatusOK, export.ContentType, export.Payload)
}

func courseFilterFromQuery(c *gin.Context) models.CourseFilter {
	var filter models.CourseFilter
	filter.Code = strings.TrimSpace(c.Query("code"))
	filter.Name = strings.TrimSpace(c.Query("name"))
	filter.Department = strings.TrimSpace(c.Query("department"))
	filter.InstructorID = c.Query("instructorId")
	if raw := c.Query("credits"); raw != "" {
		if credits, err := strconv.Atoi(raw); err == nil {
			filter.Credits = &credits
		}
	}
	if raw := c.Query("limitMin"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.LimitMin = &v
		}
	}
	if raw := c.Query("limitMax"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.LimitMax = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	filter.Cursor = c.Query("cursor")
	return filter
}
