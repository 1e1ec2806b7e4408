package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnupon-exporter/internal/models"
)

// ExternalRepository reads the LearnUpon course mapping and status log tables.
type ExternalRepository struct {
	db *sqlx.DB
}

// NewExternalRepository constructs the repository.
func NewExternalRepository(db *sqlx.DB) *ExternalRepository {
	return &ExternalRepository{db: db}
}

// Mappings loads the course to component mapping keyed by course id.
func (r *ExternalRepository) Mappings(ctx context.Context) (models.MappingTable, error) {
	const query = `SELECT course_id, component_id FROM learnupon_exporter_coursemapping`
	var rows []models.ExternalCourseMapping
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list course mappings: %w", err)
	}
	table := make(models.MappingTable, len(rows))
	for _, row := range rows {
		table[row.CourseID] = row
	}
	return table, nil
}

// StatusLogs loads the status log keyed by external enrollment id. When an
// enrollment has several entries the most recently updated one wins.
func (r *ExternalRepository) StatusLogs(ctx context.Context) (models.StatusLogTable, error) {
	const query = `SELECT enrollment_id, status, updated_at FROM learnupon_exporter_statuslog ORDER BY updated_at ASC`
	var rows []models.ExternalStatusLog
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	table := make(models.StatusLogTable, len(rows))
	for _, row := range rows {
		table[row.EnrollmentID] = row
	}
	return table, nil
}
