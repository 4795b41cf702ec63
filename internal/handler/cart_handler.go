package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/service"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/response"
)

// CartHandler exposes the student cart endpoints.
type CartHandler struct {
	carts       *service.CartService
	enrollments *service.EnrollmentService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(carts *service.CartService, enrollments *service.EnrollmentService) *CartHandler {
	return &CartHandler{carts: carts, enrollments: enrollments}
}

// Add godoc
// @Summary Add a course to the cart
// @Tags Cart
// @Accept json
// @Produce json
// @Param payload body dto.AddToCartRequest true "Course to stage"
// @Success 200 {object} response.Envelope
// @Router /cart [post]
func (h *CartHandler) Add(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, err := h.carts.Add(c.Request.Context(), principalFromContext(c), claims.StudentID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Remove godoc
// @Summary Remove a course from the cart
// @Tags Cart
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 204
// @Router /cart/{courseId} [delete]
func (h *CartHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	if err := h.carts.Remove(c.Request.Context(), principalFromContext(c), claims.StudentID, c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clear godoc
// @Summary Clear the cart
// @Tags Cart
// @Produce json
// @Success 204
// @Router /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	if err := h.carts.Clear(c.Request.Context(), principalFromContext(c), claims.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List cart items
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart [get]
func (h *CartHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	items, err := h.carts.List(c.Request.Context(), principalFromContext(c), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Commit godoc
// @Summary Enroll in every staged course
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart/commit [post]
func (h *CartHandler) Commit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
		return
	}
	report, err := h.enrollments.EnrollFromCart(c.Request.Context(), principalFromContext(c), claims.StudentID, claims.StudentGroup)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
