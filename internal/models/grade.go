package models

import "time"

// GradeKey identifies a persistent grade by learner and course.
type GradeKey struct {
	UserID   int64
	CourseID string
}

// PersistentGrade is the stored course grade snapshot.
type PersistentGrade struct {
	UserID          int64      `db:"user_id" json:"user_id"`
	CourseID        string     `db:"course_id" json:"course_id"`
	PercentGrade    float64    `db:"percent_grade" json:"percent_grade"`
	LetterGrade     string     `db:"letter_grade" json:"letter_grade"`
	PassedTimestamp *time.Time `db:"passed_timestamp" json:"passed_timestamp,omitempty"`
	Created         time.Time  `db:"created" json:"created"`
	Modified        time.Time  `db:"modified" json:"modified"`
}

// Key returns the composite key for the grade.
func (g PersistentGrade) Key() GradeKey {
	return GradeKey{UserID: g.UserID, CourseID: g.CourseID}
}

// GradeTable is the full grade table keyed for lookup during export.
type GradeTable map[GradeKey]PersistentGrade

// Get returns the grade for an enrollment, if any.
func (t GradeTable) Get(key GradeKey) (PersistentGrade, bool) {
	g, ok := t[key]
	return g, ok
}
