package dto

import "github.com/pharmedu/training-api/internal/models"

// UpsertSOPRequest payload for creating or updating a SOP entry.
type UpsertSOPRequest struct {
	Code        string             `json:"code" validate:"required"`
	Title       string             `json:"title" validate:"required"`
	Category    models.SOPCategory `json:"category" validate:"required"`
	Keywords    string             `json:"keywords"`
	DocumentURL string             `json:"documentUrl" validate:"required,url"`
	Active      *bool              `json:"active"`
}

// UpsertVideoRequest payload for creating or updating a gallery entry.
type UpsertVideoRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"required,url"`
	Topic       string `json:"topic"`
	DurationSec int    `json:"durationSec" validate:"gte=0"`
	Active      *bool  `json:"active"`
}

// ShiftSyncResponse summarises a roster sync run.
type ShiftSyncResponse struct {
	Imported int    `json:"imported"`
	SyncedAt string `json:"syncedAt"`
}
