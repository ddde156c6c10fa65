package models

import "time"

// Video is a training video gallery entry.
type Video struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	URL         string    `db:"url" json:"url"`
	Topic       string    `db:"topic" json:"topic"`
	DurationSec int       `db:"duration_sec" json:"duration_sec"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// VideoFilter constrains gallery listing queries.
type VideoFilter struct {
	Topic    string
	Query    string
	Active   *bool
	Page     int
	PageSize int
}
