package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/models"
)

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, StudentID: "student-1", StudentGroup: "FR"}
}

func TestCartHandlerAddWithoutStudentAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCartHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/cart", bytes.NewReader([]byte(`{"course_id":"course-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Add(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCartHandlerAddInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCartHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/cart", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.Add(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartHandlerCommitWithoutStudentAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCartHandler(nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/cart/commit", nil)
	c.Request = req

	handler.Commit(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
