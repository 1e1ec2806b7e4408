package models

import (
	"strings"
	"time"
)

// Enrollment links a learner to a course. User and course columns are joined in
// by the repository so that each row is self-contained for export.
type Enrollment struct {
	ID       int64     `db:"id" json:"id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	CourseID string    `db:"course_id" json:"course_id"`
	Created  time.Time `db:"created" json:"created"`

	UserEmail     string     `db:"user_email" json:"user_email"`
	UserFirstName string     `db:"user_first_name" json:"user_first_name"`
	UserLastName  string     `db:"user_last_name" json:"user_last_name"`
	Username      string     `db:"username" json:"username"`
	CourseName    *string    `db:"course_name" json:"course_name,omitempty"`
	CourseEnd     *time.Time `db:"course_end" json:"course_end,omitempty"`

	// FirstViewed and LastViewed bound the learner's courseware module
	// activity in the course; nil when there is none.
	FirstViewed *time.Time `db:"first_viewed" json:"first_viewed,omitempty"`
	LastViewed  *time.Time `db:"last_viewed" json:"last_viewed,omitempty"`
}

// Key returns the composite lookup key used by the grade table.
func (e Enrollment) Key() GradeKey {
	return GradeKey{UserID: e.UserID, CourseID: e.CourseID}
}

// EnrollmentFilter narrows the enrollments selected for an export. An empty
// CourseIDs slice selects every course.
type EnrollmentFilter struct {
	CourseIDs   []string
	CreatedFrom *time.Time
	EmailDomain string
}

// Matches reports whether the enrollment satisfies every filter. It mirrors the
// SQL predicates and is used by in-memory stores and tests.
func (f EnrollmentFilter) Matches(e Enrollment) bool {
	if len(f.CourseIDs) > 0 {
		found := false
		for _, id := range f.CourseIDs {
			if id == e.CourseID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && e.Created.Before(*f.CreatedFrom) {
		return false
	}
	if f.EmailDomain != "" && !strings.HasSuffix(e.UserEmail, f.EmailDomain) {
		return false
	}
	return true
}

// ForCourse returns a copy of the filter scoped to a single course.
func (f EnrollmentFilter) ForCourse(courseID string) EnrollmentFilter {
	f.CourseIDs = []string{courseID}
	return f
}
