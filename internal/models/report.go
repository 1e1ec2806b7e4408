package models

import "fmt"

// ReportKind names one export variant.
type ReportKind string

const (
	ReportKindEnrollment         ReportKind = "enrollment"
	ReportKindEnrollmentGraded   ReportKind = "enrollment_graded"
	ReportKindEnrollmentActivity ReportKind = "enrollment_activity"
	ReportKindEnrollmentExternal ReportKind = "enrollment_external"
	ReportKindUser               ReportKind = "user"
)

// ParseReportKind validates a kind name.
func ParseReportKind(raw string) (ReportKind, error) {
	switch k := ReportKind(raw); k {
	case ReportKindEnrollment, ReportKindEnrollmentGraded, ReportKindEnrollmentActivity,
		ReportKindEnrollmentExternal, ReportKindUser:
		return k, nil
	default:
		return "", fmt.Errorf("unknown report kind %q", raw)
	}
}

// EnrollmentStatus is the derived learner status written to the report.
type EnrollmentStatus string

const (
	StatusNotStarted EnrollmentStatus = "not started"
	StatusStarted    EnrollmentStatus = "started"
	StatusCompleted  EnrollmentStatus = "completed"
	StatusPassed     EnrollmentStatus = "passed"
	StatusFailed     EnrollmentStatus = "failed"
)
