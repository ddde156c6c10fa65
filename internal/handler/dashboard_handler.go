package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/response"
)

type dashboardService interface {
	Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error)
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Student godoc
// @Summary Per-form progress summary for one student
// @Tags Dashboard
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /dashboard/students/{id} [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Param("id")
	if claims.Role == models.RoleStudent && studentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Student(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Overview godoc
// @Summary Whole-cohort progress matrix
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	overview, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, overview, nil, meta)
}
