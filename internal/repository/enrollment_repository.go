package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/learnupon-exporter/internal/models"
)

const enrollmentBase = `FROM student_courseenrollment e
JOIN auth_user u ON u.id = e.user_id
LEFT JOIN course_overviews_courseoverview c ON c.id = e.course_id`

const enrollmentColumns = `e.id, e.user_id, e.course_id, e.created,
        u.email AS user_email, u.first_name AS user_first_name, u.last_name AS user_last_name, u.username,
        c.display_name AS course_name, c."end" AS course_end,
        (SELECT MIN(m.created) FROM courseware_studentmodule m
            WHERE m.student_id = e.user_id AND m.course_id = e.course_id) AS first_viewed,
        (SELECT MAX(m.created) FROM courseware_studentmodule m
            WHERE m.student_id = e.user_id AND m.course_id = e.course_id) AS last_viewed`

// EnrollmentRepository reads course enrollments from the platform store.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Count returns the number of enrollments matching the filter.
func (r *EnrollmentRepository) Count(ctx context.Context, filter models.EnrollmentFilter) (int, error) {
	clause, args := enrollmentConditions(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+enrollmentBase+clause, args...); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// Stream calls fn for every enrollment matching the filter, in enrollment id
// order, without loading the whole set in memory. The cursor holds a pool
// connection until it is drained, so fn must not query the database; module
// activity is selected with each row instead.
func (r *EnrollmentRepository) Stream(ctx context.Context, filter models.EnrollmentFilter, fn func(models.Enrollment) error) error {
	clause, args := enrollmentConditions(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY e.id", enrollmentColumns, enrollmentBase+clause)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var enrollment models.Enrollment
		if err := rows.StructScan(&enrollment); err != nil {
			return fmt.Errorf("scan enrollment: %w", err)
		}
		if err := fn(enrollment); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate enrollments: %w", err)
	}
	return nil
}

// ListUsers returns the distinct users enrolled in any of the given courses.
func (r *EnrollmentRepository) ListUsers(ctx context.Context, courseIDs []string) ([]models.User, error) {
	const query = `SELECT u.id, u.email, u.first_name, u.last_name, u.username FROM auth_user u
        WHERE u.id IN (SELECT e.user_id FROM student_courseenrollment e WHERE e.course_id = ANY($1))
        ORDER BY u.id`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}
	return users, nil
}

func enrollmentConditions(filter models.EnrollmentFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if len(filter.CourseIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("e.course_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.CourseIDs))
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("e.created >= $%d", len(args)+1))
		args = append(args, *filter.CreatedFrom)
	}
	if filter.EmailDomain != "" {
		conditions = append(conditions, fmt.Sprintf("u.email LIKE $%d", len(args)+1))
		args = append(args, "%"+escapeLike(filter.EmailDomain))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(raw string) string {
	return likeEscaper.Replace(raw)
}
