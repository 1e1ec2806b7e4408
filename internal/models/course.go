package models

import "time"

// Course is the subset of the course overview used by the exports.
type Course struct {
	ID          string     `db:"id" json:"id"`
	DisplayName string     `db:"display_name" json:"display_name"`
	End         *time.Time `db:"end" json:"end,omitempty"`
}
