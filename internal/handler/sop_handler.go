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

// SOPHandler exposes the SOP library endpoints.
type SOPHandler struct {
	service *service.SOPService
}

// NewSOPHandler constructs the handler.
func NewSOPHandler(svc *service.SOPService) *SOPHandler {
	return &SOPHandler{service: svc}
}

// List godoc
// @Summary List SOP documents
// @Tags Library
// @Produce json
// @Param category query string false "Category filter"
// @Param q query string false "Search term"
// @Param active query bool false "Active filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sops [get]
func (h *SOPHandler) List(c *gin.Context) {
	var filter models.SOPFilter
	if category := c.Query("category"); category != "" {
		filter.Category = models.SOPCategory(strings.ToUpper(category))
	}
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

	sops, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sops, pagination)
}

// Get godoc
// @Summary Get SOP detail
// @Tags Library
// @Produce json
// @Param id path string true "SOP ID"
// @Success 200 {object} response.Envelope
// @Router /sops/{id} [get]
func (h *SOPHandler) Get(c *gin.Context) {
	sop, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sop, nil)
}

// Create godoc
// @Summary Register a SOP document
// @Tags Library
// @Accept json
// @Produce json
// @Param payload body dto.UpsertSOPRequest true "SOP payload"
// @Success 201 {object} response.Envelope
// @Router /sops [post]
func (h *SOPHandler) Create(c *gin.Context) {
	var req dto.UpsertSOPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sop, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sop)
}

// Update godoc
// @Summary Update a SOP document
// @Tags Library
// @Accept json
// @Produce json
// @Param id path string true "SOP ID"
// @Param payload body dto.UpsertSOPRequest true "SOP payload"
// @Success 200 {object} response.Envelope
// @Router /sops/{id} [put]
func (h *SOPHandler) Update(c *gin.Context) {
	var req dto.UpsertSOPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sop, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sop, nil)
}

// Delete godoc
// @Summary Retire a SOP document
// @Tags Library
// @Produce json
// @Param id path string true "SOP ID"
// @Success 204 {object} response.Envelope
// @Router /sops/{id} [delete]
func (h *SOPHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
