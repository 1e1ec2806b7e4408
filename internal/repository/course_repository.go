package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CourseRepository reads course overviews.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListIDs returns every course id ordered by id.
func (r *CourseRepository) ListIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM course_overviews_courseoverview ORDER BY id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return ids, nil
}
