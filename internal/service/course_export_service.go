package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
	"github.com/noah-isme/learnupon-exporter/pkg/export"
	"github.com/noah-isme/learnupon-exporter/pkg/jobs"
	"github.com/noah-isme/learnupon-exporter/pkg/storage"
)

// CourseExportRequest describes a per-course run. An empty course list
// exports every course.
type CourseExportRequest struct {
	ExportRequest
	Workers int
}

// CourseResult is the outcome of one course task.
type CourseResult struct {
	Number   int
	CourseID string
	Result   *ExportResult
	Err      error
}

type courseTask struct {
	number   int
	courseID string
}

// CourseExportService writes one file per course on a bounded worker pool.
// Tasks share only the read-only lookups.
type CourseExportService struct {
	pipeline
	csv *export.CSVExporter
	pdf *export.PDFExporter
}

// NewCourseExportService constructs a CourseExportService.
func NewCourseExportService(deps ExportDeps) *CourseExportService {
	p := newPipeline(deps, "course_export")
	p.deps.Progress = &lockedWriter{w: p.deps.Progress}
	return &CourseExportService{pipeline: p, csv: export.NewCSVExporter(), pdf: export.NewPDFExporter()}
}

// lockedWriter serialises progress lines from concurrent course tasks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Run exports every course and waits for all tasks. A failed course does not
// stop the others; the returned error names every failed course.
func (s *CourseExportService) Run(ctx context.Context, req CourseExportRequest) ([]CourseResult, error) {
	def, err := Definition(req.Kind)
	if err != nil {
		return nil, err
	}
	if !def.IsEnrollmentReport() {
		return nil, appErrors.Wrap(nil, appErrors.ErrInvalidArgument, fmt.Sprintf("%s cannot be exported per course", def.Kind))
	}
	store, err := storage.NewLocalStorage(req.OutputDir)
	if err != nil {
		return nil, err
	}

	courseIDs := req.Filter.CourseIDs
	if len(courseIDs) == 0 {
		courseIDs, err = s.deps.Courses.ListIDs(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "")
		}
	}
	if len(courseIDs) == 0 {
		s.logger.Warn("no courses to export")
		return nil, nil
	}

	lookups, err := s.loadLookups(ctx, def)
	if err != nil {
		return nil, err
	}

	stamp := s.now()
	total := len(courseIDs)
	pool := jobs.NewPool(string(def.Kind), func(ctx context.Context, job jobs.Job) (interface{}, error) {
		task := job.Payload.(courseTask)
		s.logger.Info(fmt.Sprintf("Exporting course %d of %d: %s", task.number, total, task.courseID))
		return s.exportFile(ctx, fileTask{
			def:      def,
			lookups:  lookups,
			filter:   req.Filter.ForCourse(task.courseID),
			store:    store,
			filename: exportFilename(def.Kind, stamp, task.courseID),
			prefix:   task.courseID,
		})
	}, jobs.PoolConfig{Workers: req.Workers, Logger: s.logger})

	queue := make([]jobs.Job, total)
	for i, id := range courseIDs {
		queue[i] = jobs.Job{ID: id, Payload: courseTask{number: i + 1, courseID: id}}
	}
	s.logger.Debug("dispatching course tasks", zap.Int("courses", total), zap.Int("workers", pool.Workers()))

	outcomes := pool.Run(ctx, queue)
	results := make([]CourseResult, total)
	var errs []error
	for i, outcome := range outcomes {
		res := CourseResult{Number: i + 1, CourseID: courseIDs[i], Err: outcome.Err}
		if r, ok := outcome.Value.(*ExportResult); ok {
			res.Result = r
		}
		if res.Err != nil {
			s.logger.Error("course export failed", zap.String("course_id", res.CourseID), zap.Error(res.Err))
			errs = append(errs, fmt.Errorf("%s: %w", res.CourseID, res.Err))
		}
		results[i] = res
	}

	// each joined error is already prefixed with its course id
	if len(errs) > 0 {
		return results, appErrors.Wrap(errors.Join(errs...), appErrors.ErrPartialFailure,
			fmt.Sprintf("%d of %d course exports failed", len(errs), total))
	}
	return results, nil
}

// Summary renders one line per course for the operator.
func (s *CourseExportService) Summary(results []CourseResult) ([]byte, error) {
	return s.csv.Render(summaryDataset(results))
}

// SummaryPDF renders the same table as Summary into a PDF document.
func (s *CourseExportService) SummaryPDF(kind models.ReportKind, results []CourseResult) ([]byte, error) {
	title := fmt.Sprintf("%s per-course export, %s", kind, s.now().UTC().Format("2006-01-02 15:04 MST"))
	return s.pdf.Render(summaryDataset(results), title)
}

func summaryDataset(results []CourseResult) export.Dataset {
	data := export.Dataset{Headers: []string{"#", "Course", "Rows", "File", "Uploaded", "Error"}}
	for _, r := range results {
		row := map[string]string{
			"#":      strconv.Itoa(r.Number),
			"Course": r.CourseID,
		}
		if r.Result != nil {
			row["Rows"] = strconv.Itoa(r.Result.Rows)
			row["File"] = r.Result.Filename
			row["Uploaded"] = strconv.FormatBool(r.Result.Uploaded)
		}
		if r.Err != nil {
			row["Error"] = r.Err.Error()
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}
