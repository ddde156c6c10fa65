package dto

import "github.com/pharmedu/training-api/internal/models"

// CreateReportRequest payload for queueing an export job.
type CreateReportRequest struct {
	Type      models.ReportType   `json:"type" validate:"required"`
	StudentID string              `json:"studentId" validate:"required"`
	FormTypes []string            `json:"formTypes"`
	Format    models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse reflects persisted job state to the caller.
type ReportJobResponse struct {
	Job         *models.ReportJob `json:"job"`
	DownloadURL string            `json:"downloadUrl,omitempty"`
}
