package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnupon-exporter/internal/models"
)

var enrollmentRowColumns = []string{"id", "user_id", "course_id", "created", "user_email", "user_first_name", "user_last_name", "username", "course_name", "course_end", "first_viewed", "last_viewed"}

func TestEnrollmentRepositoryCountAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM student_courseenrollment e.*WHERE e\.course_id = ANY\(\$1\) AND e\.created >= \$2 AND u\.email LIKE \$3`).
		WithArgs(sqlmock.AnyArg(), from, `%@x\_corp.com`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background(), models.EnrollmentFilter{
		CourseIDs:   []string{"C1", "C2"},
		CreatedFrom: &from,
		EmailDomain: "@x_corp.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountWithoutFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`LEFT JOIN course_overviews_courseoverview c ON c\.id = e\.course_id$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	total, err := repo.Count(context.Background(), models.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryStream(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	viewedFirst := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	viewedLast := time.Date(2024, 2, 7, 16, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow(1, 10, "C1", created, "a@x.com", "Ada", "Lovelace", "ada", "Course One", end, viewedFirst, viewedLast).
		AddRow(2, 11, "C1", created, "b@x.com", "Bob", "B", "bob", nil, nil, nil, nil)
	mock.ExpectQuery(`(?s)SELECT e\.id, e\.user_id.*MIN\(m\.created\).*AS first_viewed.*MAX\(m\.created\).*AS last_viewed.*WHERE e\.course_id = ANY\(\$1\) ORDER BY e\.id`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	var got []models.Enrollment
	err := repo.Stream(context.Background(), models.EnrollmentFilter{CourseIDs: []string{"C1"}}, func(e models.Enrollment) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a@x.com", got[0].UserEmail)
	require.NotNil(t, got[0].CourseName)
	assert.Equal(t, "Course One", *got[0].CourseName)
	assert.Equal(t, end, *got[0].CourseEnd)
	require.NotNil(t, got[0].FirstViewed)
	assert.Equal(t, viewedFirst, *got[0].FirstViewed)
	assert.Equal(t, viewedLast, *got[0].LastViewed)
	assert.Nil(t, got[1].CourseName)
	assert.Nil(t, got[1].CourseEnd)
	assert.Nil(t, got[1].FirstViewed)
	assert.Nil(t, got[1].LastViewed)
	assert.Equal(t, models.GradeKey{UserID: 11, CourseID: "C1"}, got[1].Key())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryStreamStopsOnCallbackError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	created := time.Now()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow(1, 10, "C1", created, "a@x.com", "", "", "a", "C", nil, nil, nil).
		AddRow(2, 11, "C1", created, "b@x.com", "", "", "b", "C", nil, nil, nil)
	mock.ExpectQuery(`ORDER BY e\.id`).WillReturnRows(rows)

	boom := errors.New("disk full")
	calls := 0
	err := repo.Stream(context.Background(), models.EnrollmentFilter{}, func(models.Enrollment) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestEnrollmentRepositoryListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "username"}).
		AddRow(10, "a@x.com", "Ada", "Lovelace", "ada")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT u.id, u.email, u.first_name, u.last_name, u.username FROM auth_user u")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	users, err := repo.ListUsers(context.Background(), []string{"C1"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `@a\%b\_c\\d`, escapeLike(`@a%b_c\d`))
}
