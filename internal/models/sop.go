package models

import "time"

// SOPCategory groups procedures by operational area.
type SOPCategory string

const (
	SOPCategoryDispensing  SOPCategory = "DISPENSING"
	SOPCategoryCompounding SOPCategory = "COMPOUNDING"
	SOPCategoryWardSupply  SOPCategory = "WARD_SUPPLY"
	SOPCategoryGeneral     SOPCategory = "GENERAL"
)

// SOP is a standard operating procedure document entry.
type SOP struct {
	ID          string      `db:"id" json:"id"`
	Code        string      `db:"code" json:"code"`
	Title       string      `db:"title" json:"title"`
	Category    SOPCategory `db:"category" json:"category"`
	Keywords    string      `db:"keywords" json:"keywords"`
	DocumentURL string      `db:"document_url" json:"document_url"`
	Version     int         `db:"version" json:"version"`
	Active      bool        `db:"active" json:"active"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// SOPFilter constrains SOP listing and lookup queries.
type SOPFilter struct {
	Category SOPCategory
	Query    string
	Active   *bool
	Page     int
	PageSize int
}
