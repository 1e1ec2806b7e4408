package service

import (
	"fmt"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
)

// ReportDefinition parameterises the export pipeline for one report kind.
type ReportDefinition struct {
	Kind   models.ReportKind
	Noun   string
	Fields Fields
	// NewDeriver is nil for reports without computed columns.
	NewDeriver    func(DeriverDeps) Deriver
	NeedsGrades   bool
	NeedsExternal bool
}

func enrollmentFields(withStarted, withScore bool) Fields {
	fields := Fields{
		{Column: ColumnLoginID, Accessor: loginIDAccessor},
		{Column: ColumnCourseName, Accessor: courseNameAccessor},
		{Column: ColumnCreatedDate, Accessor: createdAccessor},
	}
	if withStarted {
		fields = append(fields, Field{Column: ColumnStartedDate})
	}
	fields = append(fields, Field{Column: ColumnCompletedDate})
	if withScore {
		fields = append(fields, Field{Column: ColumnScore})
	}
	return append(fields,
		Field{Column: ColumnStatus},
		Field{Column: ColumnExpiresDate, Accessor: expiresAccessor},
	)
}

var definitions = map[models.ReportKind]ReportDefinition{
	models.ReportKindEnrollment: {
		Kind:        models.ReportKindEnrollment,
		Noun:        "enrollments",
		Fields:      enrollmentFields(true, true),
		NewDeriver:  NewActivityDeriver,
		NeedsGrades: true,
	},
	models.ReportKindEnrollmentGraded: {
		Kind:        models.ReportKindEnrollmentGraded,
		Noun:        "enrollments",
		Fields:      enrollmentFields(true, true),
		NewDeriver:  NewGradeDeriver,
		NeedsGrades: true,
	},
	models.ReportKindEnrollmentActivity: {
		Kind:        models.ReportKindEnrollmentActivity,
		Noun:        "enrollments",
		Fields:      enrollmentFields(false, true),
		NewDeriver:  NewLastActivityDeriver,
		NeedsGrades: true,
	},
	models.ReportKindEnrollmentExternal: {
		Kind: models.ReportKindEnrollmentExternal,
		Noun: "enrollments",
		Fields: Fields{
			{Column: ColumnLoginID, Accessor: loginIDAccessor},
			{Column: ColumnCourseName, Accessor: courseNameAccessor},
			{Column: ColumnStatus},
			{Column: ColumnCreatedDate, Accessor: createdAccessor},
			{Column: ColumnStartedDate},
			{Column: ColumnCompletedDate},
			{Column: ColumnExpiresDate, Accessor: expiresAccessor},
		},
		NewDeriver:    NewExternalDeriver,
		NeedsExternal: true,
	},
	models.ReportKindUser: {
		Kind: models.ReportKindUser,
		Noun: "users",
		Fields: Fields{
			{Column: "email", Accessor: userString(func(u *models.User) string { return u.Email })},
			{Column: "firstname", Accessor: userString(func(u *models.User) string { return u.FirstName })},
			{Column: "lastname", Accessor: userString(func(u *models.User) string { return u.LastName })},
			{Column: "username", Accessor: userString(func(u *models.User) string { return u.Username })},
		},
	},
}

// Definition returns the pipeline configuration for kind.
func Definition(kind models.ReportKind) (ReportDefinition, error) {
	def, ok := definitions[kind]
	if !ok {
		return ReportDefinition{}, appErrors.Wrap(nil, appErrors.ErrInvalidArgument, fmt.Sprintf("unknown report kind %q", kind))
	}
	return def, nil
}

// IsEnrollmentReport reports whether the kind streams enrollments.
func (d ReportDefinition) IsEnrollmentReport() bool {
	return d.NewDeriver != nil
}
