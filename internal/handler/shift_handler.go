package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/service"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/response"
)

// ShiftHandler exposes the duty roster endpoints.
type ShiftHandler struct {
	service *service.ShiftService
}

// NewShiftHandler constructs the handler.
func NewShiftHandler(svc *service.ShiftService) *ShiftHandler {
	return &ShiftHandler{service: svc}
}

// List godoc
// @Summary List roster shifts
// @Tags Shifts
// @Produce json
// @Param dutyRole query string false "Duty role filter"
// @Param station query string false "Station filter"
// @Param day query string false "Day of week filter"
// @Success 200 {object} response.Envelope
// @Router /shifts [get]
func (h *ShiftHandler) List(c *gin.Context) {
	filter := models.ShiftFilter{
		DutyRole:  strings.TrimSpace(c.Query("dutyRole")),
		Station:   strings.TrimSpace(c.Query("station")),
		DayOfWeek: strings.ToUpper(strings.TrimSpace(c.Query("day"))),
	}
	shifts, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	syncedAt, err := h.service.LastSyncedAt(c.Request.Context())
	meta := map[string]interface{}{}
	if err == nil && syncedAt.Unix() > 0 {
		meta["last_synced_at"] = syncedAt
	}
	response.JSON(c, http.StatusOK, shifts, nil, meta)
}

// Sync godoc
// @Summary Re-import the roster from the shared spreadsheet
// @Tags Shifts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /shifts/sync [post]
func (h *ShiftHandler) Sync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Sync(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
