package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pharmedu/training-api/internal/middleware"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
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

func actorFromClaims(claims *models.JWTClaims) workflow.Actor {
	return workflow.Actor{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}
}
