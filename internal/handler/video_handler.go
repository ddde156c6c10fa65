package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/service"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/response"
)

// VideoHandler exposes the training video gallery endpoints.
type VideoHandler struct {
	service *service.VideoService
}

// NewVideoHandler constructs the handler.
func NewVideoHandler(svc *service.VideoService) *VideoHandler {
	return &VideoHandler{service: svc}
}

// List godoc
// @Summary List training videos
// @Tags Library
// @Produce json
// @Param topic query string false "Topic filter"
// @Param q query string false "Search term"
// @Param active query bool false "Active filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /videos [get]
func (h *VideoHandler) List(c *gin.Context) {
	var filter models.VideoFilter
	filter.Topic = strings.TrimSpace(c.Query("topic"))
	filter.Query = strings.TrimSpace(c.Query("q"))
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	videos, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, videos, pagination)
}

// Get godoc
// @Summary Get video detail
// @Tags Library
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} response.Envelope
// @Router /videos/{id} [get]
func (h *VideoHandler) Get(c *gin.Context) {
	video, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, video, nil)
}

// Create godoc
// @Summary Register a training video
// @Tags Library
// @Accept json
// @Produce json
// @Param payload body dto.UpsertVideoRequest true "Video payload"
// @Success 201 {object} response.Envelope
// @Router /videos [post]
func (h *VideoHandler) Create(c *gin.Context) {
	var req dto.UpsertVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	video, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, video)
}

// Update godoc
// @Summary Update a training video
// @Tags Library
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param payload body dto.UpsertVideoRequest true "Video payload"
// @Success 200 {object} response.Envelope
// @Router /videos/{id} [put]
func (h *VideoHandler) Update(c *gin.Context) {
	var req dto.UpsertVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	video, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, video, nil)
}

// Delete godoc
// @Summary Remove a video from the gallery
// @Tags Library
// @Produce json
// @Param id path string true "Video ID"
// @Success 204 {object} response.Envelope
// @Router /videos/{id} [delete]
func (h *VideoHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
