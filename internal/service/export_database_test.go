package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	"github.com/noah-isme/learnupon-exporter/internal/repository"
)

var streamColumns = []string{"id", "user_id", "course_id", "created", "user_email", "user_first_name", "user_last_name",
	"username", "course_name", "course_end", "first_viewed", "last_viewed"}

// newSingleConnDB returns a pool that can hand out only one connection, so a
// query issued while the enrollment cursor is open would block until ctx ends.
func newSingleConnDB(t *testing.T, inOrder bool) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(inOrder)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func repositoryDeps(db *sqlx.DB) ExportDeps {
	return ExportDeps{
		Enrollments: repository.NewEnrollmentRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Grades:      repository.NewGradeRepository(db),
		External:    repository.NewExternalRepository(db),
		Logger:      zap.NewNop(),
		Now:         fixedNow,
	}
}

func expectGrades(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM grades_persistentcoursegrade`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "course_id", "percent_grade", "letter_grade", "passed_timestamp", "created", "modified"}))
}

func expectCourse(mock sqlmock.Sqlmock, enrollmentID int64, courseID string) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`(?s)AS first_viewed.*ORDER BY e\.id`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(streamColumns).
			AddRow(enrollmentID, 7, courseID, created, "sam@corp.com", "Sam", "Lee", "sam", "Course", nil, viewedFirst, viewedLast))
}

func TestExportServiceRunOnSingleConnectionPool(t *testing.T) {
	db, mock := newSingleConnDB(t, true)
	expectGrades(mock)
	expectCourse(mock, 1, "C1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := NewExportService(repositoryDeps(db)).Run(ctx, ExportRequest{
		Kind:      models.ReportKindEnrollmentGraded,
		OutputDir: t.TempDir(),
		Filter:    models.EnrollmentFilter{CourseIDs: []string{"C1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)

	lines := readLines(t, result.Path)
	require.Len(t, lines, 2)
	assert.Equal(t, "sam@corp.com,Course,2024-01-02 03:04:05+00:00,2024-01-10 08:00:00+00:00,,,started,", lines[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseExportServiceMoreWorkersThanConnections(t *testing.T) {
	db, mock := newSingleConnDB(t, false)
	expectGrades(mock)
	expectCourse(mock, 1, "C1")
	expectCourse(mock, 2, "C2")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := NewCourseExportService(repositoryDeps(db)).Run(ctx, CourseExportRequest{
		ExportRequest: ExportRequest{
			Kind:      models.ReportKindEnrollmentActivity,
			OutputDir: t.TempDir(),
			Filter:    models.EnrollmentFilter{CourseIDs: []string{"C1", "C2"}},
		},
		Workers: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, 1, r.Result.Rows)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
