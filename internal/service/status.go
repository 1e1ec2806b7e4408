package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
)

// Deriver fills the computed columns of a row: status, dates and score.
type Deriver interface {
	Derive(ctx context.Context, rec *Record, row Row) error
}

type contactResolver interface {
	Resolve(ctx context.Context, email, componentID string) (string, error)
}

// Lookups holds tables loaded once per run and shared read-only by every
// course task.
type Lookups struct {
	Grades     models.GradeTable
	Mappings   models.MappingTable
	StatusLogs models.StatusLogTable
}

// DeriverDeps are the collaborators a deriver may use.
type DeriverDeps struct {
	Lookups  *Lookups
	Contacts contactResolver
	Logger   *zap.Logger
}

func (d DeriverDeps) grade(e *models.Enrollment) (models.PersistentGrade, bool) {
	if d.Lookups == nil {
		return models.PersistentGrade{}, false
	}
	return d.Lookups.Grades.Get(e.Key())
}

// ActivityDeriver: any module view marks the enrollment with ActivityStatus
// and a started date; a grade sets the score, completion date and forces
// completed.
type ActivityDeriver struct {
	deps           DeriverDeps
	ActivityStatus models.EnrollmentStatus
}

// NewActivityDeriver builds the default enrollment report rule.
func NewActivityDeriver(deps DeriverDeps) Deriver {
	return &ActivityDeriver{deps: deps, ActivityStatus: models.StatusCompleted}
}

func (d *ActivityDeriver) Derive(ctx context.Context, rec *Record, row Row) error {
	e := rec.Enrollment
	row[ColumnStatus] = string(models.StatusNotStarted)

	if e.FirstViewed != nil {
		row[ColumnStatus] = string(d.ActivityStatus)
		row[ColumnStartedDate] = formatNative(*e.FirstViewed)
	}

	if grade, ok := d.deps.grade(e); ok {
		row[ColumnScore] = formatScore(grade.PercentGrade)
		row[ColumnCompletedDate] = formatNative(grade.Created)
		row[ColumnStatus] = string(models.StatusCompleted)
	}
	return nil
}

// GradeDeriver refines ActivityDeriver with pass/fail. A passed timestamp with
// an empty letter grade is a failure.
type GradeDeriver struct {
	deps DeriverDeps
}

// NewGradeDeriver builds the graded enrollment report rule.
func NewGradeDeriver(deps DeriverDeps) Deriver {
	return &GradeDeriver{deps: deps}
}

func (d *GradeDeriver) Derive(ctx context.Context, rec *Record, row Row) error {
	e := rec.Enrollment
	row[ColumnStatus] = string(models.StatusNotStarted)

	if e.FirstViewed != nil {
		row[ColumnStatus] = string(models.StatusStarted)
		row[ColumnStartedDate] = formatNative(*e.FirstViewed)
	}

	grade, ok := d.deps.grade(e)
	if !ok {
		return nil
	}
	row[ColumnScore] = formatScore(grade.PercentGrade)
	if grade.PassedTimestamp != nil {
		row[ColumnCompletedDate] = formatNative(*grade.PassedTimestamp)
		if grade.LetterGrade != "" {
			row[ColumnStatus] = string(models.StatusPassed)
		} else {
			row[ColumnStatus] = string(models.StatusFailed)
		}
		return nil
	}
	row[ColumnCompletedDate] = formatNative(grade.Created)
	row[ColumnStatus] = string(models.StatusCompleted)
	return nil
}

// LastActivityDeriver marks any activity as completed on the latest view
// date. There is no started state.
type LastActivityDeriver struct {
	deps DeriverDeps
}

// NewLastActivityDeriver builds the activity enrollment report rule.
func NewLastActivityDeriver(deps DeriverDeps) Deriver {
	return &LastActivityDeriver{deps: deps}
}

func (d *LastActivityDeriver) Derive(ctx context.Context, rec *Record, row Row) error {
	e := rec.Enrollment
	row[ColumnStatus] = string(models.StatusNotStarted)

	if e.LastViewed != nil {
		row[ColumnStatus] = string(models.StatusCompleted)
		row[ColumnCompletedDate] = formatNative(*e.LastViewed)
	}
	if grade, ok := d.deps.grade(e); ok {
		row[ColumnScore] = formatScore(grade.PercentGrade)
	}
	return nil
}

// ExternalDeriver reads status from the LearnUpon status log. Courses without
// a mapping are never looked up.
type ExternalDeriver struct {
	deps DeriverDeps
}

// NewExternalDeriver builds the external enrollment report rule.
func NewExternalDeriver(deps DeriverDeps) Deriver {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ExternalDeriver{deps: deps}
}

func (d *ExternalDeriver) Derive(ctx context.Context, rec *Record, row Row) error {
	e := rec.Enrollment
	row[ColumnStatus] = string(models.StatusNotStarted)
	if d.deps.Lookups == nil {
		return nil
	}

	mapping, ok := d.deps.Lookups.Mappings[e.CourseID]
	if !ok {
		return nil
	}

	enrollmentID, err := d.deps.Contacts.Resolve(ctx, e.UserEmail, mapping.ComponentID)
	if err != nil {
		d.deps.Logger.Error("external enrollment lookup failed",
			zap.Int64("user_id", e.UserID),
			zap.String("email", e.UserEmail),
			zap.String("course_id", e.CourseID),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrExternalLookup,
			"resolve external enrollment for "+e.UserEmail+" in "+e.CourseID)
	}
	if enrollmentID == "" {
		return nil
	}

	log, ok := d.deps.Lookups.StatusLogs[enrollmentID]
	if ok && strings.EqualFold(log.Status, string(models.StatusPassed)) {
		row[ColumnStatus] = string(models.StatusPassed)
		row[ColumnCompletedDate] = formatExternal(log.UpdatedAt)
	}
	return nil
}
