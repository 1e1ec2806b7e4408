package models

import "time"

// ExternalCourseMapping associates a platform course with a LearnUpon
// component (course) identifier.
type ExternalCourseMapping struct {
	CourseID    string `db:"course_id" json:"course_id"`
	ComponentID string `db:"component_id" json:"component_id"`
}

// ExternalStatusLog records the latest status LearnUpon reported for one of its
// enrollments.
type ExternalStatusLog struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Status       string    `db:"status" json:"status"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MappingTable is keyed by platform course id.
type MappingTable map[string]ExternalCourseMapping

// StatusLogTable is keyed by external enrollment id.
type StatusLogTable map[string]ExternalStatusLog
