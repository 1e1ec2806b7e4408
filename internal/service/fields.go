package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/learnupon-exporter/internal/models"
)

// Column names shared by the enrollment reports.
const (
	ColumnLoginID       = "Login ID"
	ColumnCourseName    = "Course Name"
	ColumnCreatedDate   = "Enrollment Created Date"
	ColumnStartedDate   = "Enrollment Started Date"
	ColumnCompletedDate = "Enrollment Completed Date"
	ColumnScore         = "Enrollment Score"
	ColumnStatus        = "Enrollment Status"
	ColumnExpiresDate   = "Enrollment Access Expires Date"
)

const (
	// nativeDateLayout renders timestamps the way the platform prints them;
	// microseconds are added only when non-zero.
	nativeDateLayout       = "2006-01-02 15:04:05-07:00"
	nativeMicrosDateLayout = "2006-01-02 15:04:05.000000-07:00"
	// externalDateLayout is the dd/mm/yyyy form LearnUpon imports.
	externalDateLayout = "02/01/2006"
)

// Record is the source of one output row. Enrollment reports set Enrollment,
// the user report sets User.
type Record struct {
	Enrollment *models.Enrollment
	User       *models.User
}

// Accessor resolves a column value from a record. It must return "" when any
// value along the way is missing.
type Accessor func(*Record) string

// Field binds a CSV column to its accessor. A nil Accessor marks a column the
// status deriver fills in.
type Field struct {
	Column   string
	Accessor Accessor
}

// Fields is an ordered column mapping; its order is the CSV header order.
type Fields []Field

// Row is one output line keyed by column.
type Row map[string]string

// Headers returns the column names in declaration order.
func (f Fields) Headers() []string {
	headers := make([]string, len(f))
	for i, field := range f {
		headers[i] = field.Column
	}
	return headers
}

// Map resolves every mapped column. Computed columns start empty.
func (f Fields) Map(rec *Record) Row {
	row := make(Row, len(f))
	for _, field := range f {
		if field.Accessor == nil || rec == nil {
			row[field.Column] = ""
			continue
		}
		row[field.Column] = field.Accessor(rec)
	}
	return row
}

func enrollmentString(fn func(*models.Enrollment) string) Accessor {
	return func(rec *Record) string {
		if rec.Enrollment == nil {
			return ""
		}
		return fn(rec.Enrollment)
	}
}

func userString(fn func(*models.User) string) Accessor {
	return func(rec *Record) string {
		if rec.User == nil {
			return ""
		}
		return fn(rec.User)
	}
}

var (
	loginIDAccessor = enrollmentString(func(e *models.Enrollment) string { return e.UserEmail })

	courseNameAccessor = enrollmentString(func(e *models.Enrollment) string {
		if e.CourseName == nil {
			return ""
		}
		return *e.CourseName
	})

	createdAccessor = enrollmentString(func(e *models.Enrollment) string { return formatNative(e.Created) })

	expiresAccessor = enrollmentString(func(e *models.Enrollment) string {
		if e.CourseEnd == nil {
			return ""
		}
		return formatNative(*e.CourseEnd)
	})
)

func formatNative(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Nanosecond()/1000 != 0 {
		return t.UTC().Format(nativeMicrosDateLayout)
	}
	return t.UTC().Format(nativeDateLayout)
}

func formatExternal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(externalDateLayout)
}

// formatScore prints the shortest representation that round-trips, keeping a
// trailing ".0" on whole numbers.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
