package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// principalFromContext builds the audit attribution for the current request.
func principalFromContext(c *gin.Context) *models.Principal {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &models.Principal{
		UserID:    claims.UserID,
		Role:      claims.Role,
		StudentID: claims.StudentID,
		Group:     claims.StudentGroup,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
