package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
	"github.com/noah-isme/learnupon-exporter/pkg/export"
	"github.com/noah-isme/learnupon-exporter/pkg/storage"
)

type enrollmentStore interface {
	Count(ctx context.Context, filter models.EnrollmentFilter) (int, error)
	Stream(ctx context.Context, filter models.EnrollmentFilter, fn func(models.Enrollment) error) error
	ListUsers(ctx context.Context, courseIDs []string) ([]models.User, error)
}

type courseStore interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type gradeStore interface {
	All(ctx context.Context) (models.GradeTable, error)
}

type externalStore interface {
	Mappings(ctx context.Context) (models.MappingTable, error)
	StatusLogs(ctx context.Context) (models.StatusLogTable, error)
}

type fileUploader interface {
	Upload(ctx context.Context, file io.ReadSeeker, filename string) (bool, error)
}

// ExportDeps wires the stores and adapters shared by every export service.
type ExportDeps struct {
	Enrollments enrollmentStore
	Courses     courseStore
	Grades      gradeStore
	External    externalStore
	Contacts    contactResolver
	Uploader    fileUploader
	Metrics     *MetricsService
	// Progress receives operator-facing progress lines.
	Progress io.Writer
	Logger   *zap.Logger
	Now      func() time.Time
}

// ExportRequest describes one invocation.
type ExportRequest struct {
	Kind      models.ReportKind
	OutputDir string
	Filter    models.EnrollmentFilter
}

// ExportResult captures one written file.
type ExportResult struct {
	Kind     models.ReportKind
	Filename string
	Path     string
	Rows     int
	Uploaded bool
}

// ExportService runs a single-file export over every requested course.
type ExportService struct {
	pipeline
}

// NewExportService constructs an ExportService.
func NewExportService(deps ExportDeps) *ExportService {
	return &ExportService{pipeline: newPipeline(deps, "export")}
}

// Run validates the output directory, exports the report and uploads it.
func (s *ExportService) Run(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	def, err := Definition(req.Kind)
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

	s.logger.Info("Exporting courses: " + strings.Join(req.Filter.CourseIDs, ", "))
	lookups, err := s.loadLookups(ctx, def)
	if err != nil {
		return nil, err
	}

	filename := exportFilename(def.Kind, s.now(), "")
	return s.exportFile(ctx, fileTask{
		def:      def,
		lookups:  lookups,
		filter:   req.Filter,
		store:    store,
		filename: filename,
	})
}

type pipeline struct {
	deps   ExportDeps
	logger *zap.Logger
}

func newPipeline(deps ExportDeps, name string) pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Progress == nil {
		deps.Progress = io.Discard
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return pipeline{deps: deps, logger: deps.Logger.Named(name)}
}

func (p *pipeline) now() time.Time {
	return p.deps.Now().UTC()
}

// filenameReplacer flattens legacy course ids such as Org/Course/Run into a
// single path element. The same name is used as the S3 key suffix.
var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_")

func exportFilename(kind models.ReportKind, at time.Time, courseID string) string {
	stamp := at.Format("20060102_150405")
	if courseID == "" {
		return fmt.Sprintf("%s_export%s.csv", kind, stamp)
	}
	return fmt.Sprintf("%s_export%s_%s.csv", kind, stamp, filenameReplacer.Replace(courseID))
}

func (p *pipeline) loadLookups(ctx context.Context, def ReportDefinition) (*Lookups, error) {
	lookups := &Lookups{}
	if def.NeedsGrades {
		fmt.Fprintln(p.deps.Progress, "Fetching grades...")
		grades, err := p.deps.Grades.All(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "")
		}
		lookups.Grades = grades
		p.logger.Debug("loaded grades", zap.Int("count", len(grades)))
	}
	if def.NeedsExternal {
		if p.deps.Contacts == nil {
			return nil, appErrors.Wrap(nil, appErrors.ErrConfiguration, "LEARNUPON_API_URL is required for the external enrollment report")
		}
		mappings, err := p.deps.External.Mappings(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "")
		}
		logs, err := p.deps.External.StatusLogs(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "")
		}
		lookups.Mappings = mappings
		lookups.StatusLogs = logs
		p.logger.Debug("loaded external tables", zap.Int("mappings", len(mappings)), zap.Int("status_logs", len(logs)))
	}
	return lookups, nil
}

type fileTask struct {
	def      ReportDefinition
	lookups  *Lookups
	filter   models.EnrollmentFilter
	store    *storage.LocalStorage
	filename string
	// prefix tags progress lines, empty for single-file runs.
	prefix string
}

// exportFile counts, writes and uploads one enrollment file. The file is only
// created once the count query has succeeded.
func (p *pipeline) exportFile(ctx context.Context, task fileTask) (result *ExportResult, err error) {
	start := time.Now()
	result = &ExportResult{Kind: task.def.Kind, Filename: task.filename, Path: task.store.Path(task.filename)}
	defer func() {
		p.deps.Metrics.ObserveFile(task.def.Kind, result.Rows, time.Since(start), err)
	}()

	total, err := p.deps.Enrollments.Count(ctx, task.filter)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrDataAccess, "")
	}

	deriver := task.def.NewDeriver(DeriverDeps{
		Lookups:  task.lookups,
		Contacts: p.deps.Contacts,
		Logger:   p.logger,
	})

	file, err := task.store.Create(task.filename)
	if err != nil {
		return result, err
	}
	defer file.Close() //nolint:errcheck

	writer, err := export.NewCSVWriter(file, task.def.Fields.Headers(), p.deps.Progress)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrWrite, "")
	}
	writer.WithPrefix(task.prefix).Start(total, task.def.Noun)

	err = p.deps.Enrollments.Stream(ctx, task.filter, func(e models.Enrollment) error {
		rec := &Record{Enrollment: &e}
		row := task.def.Fields.Map(rec)
		if err := deriver.Derive(ctx, rec, row); err != nil {
			return err
		}
		if err := writer.Write(row); err != nil {
			return appErrors.Wrap(err, appErrors.ErrWrite, "")
		}
		return nil
	})
	result.Rows = writer.Written()
	if err != nil {
		// keep the rows written so far on disk
		_ = writer.Flush()
		var typed *appErrors.Error
		if !errors.As(err, &typed) {
			err = appErrors.Wrap(err, appErrors.ErrDataAccess, "")
		}
		return result, err
	}
	if err := writer.Done(); err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrWrite, "")
	}

	uploaded, err := p.upload(ctx, file, task.filename)
	result.Uploaded = uploaded
	if err != nil {
		return result, err
	}
	p.logger.Info("export written",
		zap.String("file", result.Path),
		zap.Int("rows", result.Rows),
		zap.Bool("uploaded", uploaded))
	return result, nil
}

func (p *pipeline) upload(ctx context.Context, file *os.File, filename string) (bool, error) {
	if p.deps.Uploader == nil {
		return false, nil
	}
	uploaded, err := p.deps.Uploader.Upload(ctx, file, filename)
	p.deps.Metrics.ObserveUpload(uploaded, err)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrUpload, "upload "+filename)
	}
	return uploaded, nil
}
