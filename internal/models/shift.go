package models

import "time"

// Shift is one duty roster entry, synced from the department spreadsheet.
type Shift struct {
	ID        string    `db:"id" json:"id"`
	DutyRole  string    `db:"duty_role" json:"duty_role"`
	Station   string    `db:"station" json:"station"`
	DayOfWeek string    `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Notes     string    `db:"notes" json:"notes"`
	SyncedAt  time.Time `db:"synced_at" json:"synced_at"`
}

// ShiftFilter constrains duty roster lookups.
type ShiftFilter struct {
	DutyRole  string
	Station   string
	DayOfWeek string
}
