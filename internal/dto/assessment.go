package dto

import (
	"time"

	"github.com/pharmedu/training-api/internal/models"
)

// CreateAssessmentRequest payload for opening a new draft record.
type CreateAssessmentRequest struct {
	StudentID      string `json:"studentId" validate:"required"`
	FormTypeID     string `json:"formTypeId" validate:"required"`
	EvaluationDate string `json:"evaluationDate"`
}

// SaveDraftRequest payload for updating field values without a transition.
type SaveDraftRequest struct {
	FieldValues    models.FieldValues `json:"fieldValues"`
	EvaluationDate string             `json:"evaluationDate"`
}

// TransitionRequest payload for requesting a status change.
type TransitionRequest struct {
	Intent         models.AssessmentStatus `json:"intent" validate:"required"`
	FieldValues    models.FieldValues      `json:"fieldValues"`
	EvaluationDate string                  `json:"evaluationDate"`
}

// AssessmentQuery mirrors supported listing filters.
type AssessmentQuery struct {
	StudentID  string
	FormTypeID string
	Status     []models.AssessmentStatus
	Limit      int
	Offset     int
}

// AssessmentDetailResponse decorates a record with view-state derived for the
// requesting actor.
type AssessmentDetailResponse struct {
	Record            *models.AssessmentRecord  `json:"record"`
	Editable          map[string]bool           `json:"editable"`
	CanEditDate       bool                      `json:"canEditDate"`
	AllowedIntents    []models.AssessmentStatus `json:"allowedIntents"`
	CanCreateFollowUp bool                      `json:"canCreateFollowUp"`
	RemediationTier   models.RemediationTier    `json:"remediationTier,omitempty"`
}

// AssessmentListResponse wraps a record page.
type AssessmentListResponse struct {
	Records []models.AssessmentRecord `json:"records"`
}

// FormSchemaResponse exposes a registered form definition.
type FormSchemaResponse struct {
	Schema      *models.FormSchema `json:"schema"`
	RetrievedAt time.Time          `json:"retrievedAt"`
}
