package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
	"github.com/noah-isme/learnupon-exporter/pkg/export"
	"github.com/noah-isme/learnupon-exporter/pkg/storage"
)

// UserExportService writes the learners enrolled in a set of courses.
type UserExportService struct {
	pipeline
}

// NewUserExportService constructs a UserExportService.
func NewUserExportService(deps ExportDeps) *UserExportService {
	return &UserExportService{pipeline: newPipeline(deps, "users")}
}

// Run exports every distinct user enrolled in req.Filter.CourseIDs.
func (s *UserExportService) Run(ctx context.Context, req ExportRequest) (result *ExportResult, err error) {
	def, err := Definition(models.ReportKindUser)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewLocalStorage(req.OutputDir)
	if err != nil {
		return nil, err
	}
	if len(req.Filter.CourseIDs) == 0 {
		return nil, appErrors.Wrap(nil, appErrors.ErrInvalidArgument, "at least one course id is required")
	}

	start := time.Now()
	filename := exportFilename(def.Kind, s.now(), "")
	result = &ExportResult{Kind: def.Kind, Filename: filename, Path: store.Path(filename)}
	defer func() {
		s.deps.Metrics.ObserveFile(def.Kind, result.Rows, time.Since(start), err)
	}()

	users, err := s.deps.Enrollments.ListUsers(ctx, req.Filter.CourseIDs)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrDataAccess, "")
	}

	file, err := store.Create(filename)
	if err != nil {
		return result, err
	}
	defer file.Close() //nolint:errcheck

	writer, err := export.NewCSVWriter(file, def.Fields.Headers(), s.deps.Progress)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrWrite, "")
	}
	writer.Start(len(users), def.Noun)
	for i := range users {
		if err := writer.Write(def.Fields.Map(&Record{User: &users[i]})); err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrWrite, "")
		}
	}
	result.Rows = writer.Written()
	if err := writer.Done(); err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrWrite, "")
	}

	result.Uploaded, err = s.upload(ctx, file, filename)
	if err != nil {
		return result, err
	}
	s.logger.Info("export written", zap.String("file", result.Path), zap.Int("rows", result.Rows))
	return result, nil
}
