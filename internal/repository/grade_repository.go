package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnupon-exporter/internal/models"
)

// GradeRepository reads persistent course grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// All loads the full grade table keyed by (user, course).
func (r *GradeRepository) All(ctx context.Context) (models.GradeTable, error) {
	const query = `SELECT user_id, course_id, percent_grade, COALESCE(letter_grade, '') AS letter_grade,
        passed_timestamp, created, modified FROM grades_persistentcoursegrade`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	defer rows.Close()

	table := make(models.GradeTable)
	for rows.Next() {
		var grade models.PersistentGrade
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		table[grade.Key()] = grade
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grades: %w", err)
	}
	return table, nil
}
