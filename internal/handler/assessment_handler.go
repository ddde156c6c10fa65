package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	"github.com/pharmedu/training-api/internal/workflow"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/response"
)

type assessmentService interface {
	Create(ctx context.Context, actor workflow.Actor, req dto.CreateAssessmentRequest) (*models.AssessmentRecord, error)
	Get(ctx context.Context, actor workflow.Actor, id string) (*dto.AssessmentDetailResponse, error)
	List(ctx context.Context, actor workflow.Actor, query dto.AssessmentQuery) ([]models.AssessmentRecord, error)
	SaveDraft(ctx context.Context, actor workflow.Actor, id string, req dto.SaveDraftRequest) (*dto.AssessmentDetailResponse, error)
	Transition(ctx context.Context, actor workflow.Actor, id string, req dto.TransitionRequest) (*dto.AssessmentDetailResponse, error)
	FollowUp(ctx context.Context, actor workflow.Actor, id string) (*models.AssessmentRecord, error)
	Schema(formTypeID string) (*dto.FormSchemaResponse, error)
	FormTypeIDs() []string
}

// AssessmentHandler exposes REST endpoints for assessment records.
type AssessmentHandler struct {
	service assessmentService
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(service assessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

// Create godoc
// @Summary Open a new assessment draft
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Router /assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assessment payload"))
		return
	}
	record, err := h.service.Create(c.Request.Context(), actorFromClaims(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// List godoc
// @Summary List assessment records
// @Tags Assessments
// @Produce json
// @Param studentId query string false "Student ID"
// @Param formTypeId query string false "Form type ID"
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /assessments [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.AssessmentQuery{
		StudentID:  strings.TrimSpace(c.Query("studentId")),
		FormTypeID: strings.TrimSpace(c.Query("formTypeId")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.AssessmentStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.AssessmentStatus(part))
		}
		query.Status = statuses
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}
	records, err := h.service.List(c.Request.Context(), actorFromClaims(claims), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AssessmentListResponse{Records: records}, nil)
}

// Get godoc
// @Summary Get assessment detail
// @Tags Assessments
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), actorFromClaims(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// SaveDraft godoc
// @Summary Save field values without changing status
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.SaveDraftRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/draft [put]
func (h *AssessmentHandler) SaveDraft(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid draft payload"))
		return
	}
	detail, err := h.service.SaveDraft(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Transition godoc
// @Summary Request a workflow transition
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/transition [post]
func (h *AssessmentHandler) Transition(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	detail, err := h.service.Transition(c.Request.Context(), actorFromClaims(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// FollowUp godoc
// @Summary Open a follow-up attempt from a failed record
// @Tags Assessments
// @Produce json
// @Param id path string true "Record ID"
// @Success 201 {object} response.Envelope
// @Router /assessments/{id}/follow-up [post]
func (h *AssessmentHandler) FollowUp(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.FollowUp(c.Request.Context(), actorFromClaims(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// Schemas godoc
// @Summary List registered form type IDs
// @Tags Assessments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assessments/schemas [get]
func (h *AssessmentHandler) Schemas(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"form_types": h.service.FormTypeIDs()}, nil)
}

// Schema godoc
// @Summary Get a form schema
// @Tags Assessments
// @Produce json
// @Param formTypeId path string true "Form type ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/schemas/{formTypeId} [get]
func (h *AssessmentHandler) Schema(c *gin.Context) {
	schema, err := h.service.Schema(c.Param("formTypeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schema, nil)
}
