package dto

import (
	"time"

	"github.com/pharmedu/training-api/internal/models"
)

// StudentDashboardResponse is the per-student training overview: one summary
// cell per registered form type.
type StudentDashboardResponse struct {
	StudentID   string               `json:"studentId"`
	Forms       []models.FormSummary `json:"forms"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// AdminDashboardResponse aggregates department-wide progress for staff.
type AdminDashboardResponse struct {
	Students    []StudentProgressRow `json:"students"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// StudentProgressRow is one student's roll-up across all form types.
type StudentProgressRow struct {
	StudentID   string               `json:"studentId"`
	StudentName string               `json:"studentName"`
	Email       string               `json:"email"`
	Forms       []models.FormSummary `json:"forms"`
}
