package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	"github.com/noah-isme/learnupon-exporter/internal/repository"
	"github.com/noah-isme/learnupon-exporter/internal/service"
	"github.com/noah-isme/learnupon-exporter/pkg/cache"
	"github.com/noah-isme/learnupon-exporter/pkg/config"
	"github.com/noah-isme/learnupon-exporter/pkg/database"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
	"github.com/noah-isme/learnupon-exporter/pkg/learnupon"
	"github.com/noah-isme/learnupon-exporter/pkg/logger"
	"github.com/noah-isme/learnupon-exporter/pkg/storage"
)

// runExport wires the stores and adapters for one invocation and dispatches
// to the matching export service.
func runExport(ctx context.Context, inv invocation) error {
	// Fail on a bad directory before touching any external system.
	if _, err := storage.NewLocalStorage(inv.OutputDir); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrConfiguration, "load configuration")
	}

	runID := uuid.NewString()
	log := logger.New(cfg.Log, inv.Verbosity).With(zap.String("run_id", runID), zap.String("report", string(inv.Kind)))
	defer log.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess, "connect to database")
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("contact cache unavailable, continuing without it", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	lu, err := learnupon.New(cfg.LearnUpon, log)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrConfiguration, "configure LearnUpon client")
	}

	metrics := service.NewMetricsService(cfg.Metrics, log)
	deps := buildDeps(cfg, db, redisClient, lu, metrics, inv, log)

	runErr := dispatch(ctx, deps, inv, cfg)

	snap := metrics.Snapshot()
	log.Info("run finished",
		zap.Uint64("rows", snap.Rows),
		zap.Uint64("failed_files", snap.FailedFiles),
		zap.Uint64("uploaded_files", snap.UploadedFiles),
	)
	if err := metrics.Push(ctx, runID); err != nil {
		log.Warn("push metrics", zap.Error(err))
	}
	return runErr
}

func buildDeps(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, lu *learnupon.Client, metrics *service.MetricsService, inv invocation, log *zap.Logger) service.ExportDeps {
	deps := service.ExportDeps{
		Enrollments: repository.NewEnrollmentRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Grades:      repository.NewGradeRepository(db),
		External:    repository.NewExternalRepository(db),
		Uploader:    storage.NewS3Uploader(cfg.Storage, log),
		Metrics:     metrics,
		Progress:    inv.Stdout,
		Logger:      log,
	}
	// Contacts stays a nil interface when the API is not configured.
	if lu != nil {
		contactCache := repository.NewCacheRepository(redisClient, service.ContactCachePrefix, log)
		deps.Contacts = service.NewContactResolver(lu, contactCache, cfg.LearnUpon.ContactCacheTTL, metrics, log)
	}
	return deps
}

func dispatch(ctx context.Context, deps service.ExportDeps, inv invocation, cfg *config.Config) error {
	req := service.ExportRequest{
		Kind:      inv.Kind,
		OutputDir: inv.OutputDir,
		Filter: models.EnrollmentFilter{
			CourseIDs:   inv.CourseIDs,
			CreatedFrom: inv.CreatedFrom(),
			EmailDomain: inv.EmailDomain,
		},
	}

	switch {
	case inv.Kind == models.ReportKindUser:
		_, err := service.NewUserExportService(deps).Run(ctx, req)
		return err
	case inv.PerCourse:
		workers := cfg.Export.Workers
		if inv.WorkersSet {
			workers = inv.Workers
		}
		svc := service.NewCourseExportService(deps)
		results, err := svc.Run(ctx, service.CourseExportRequest{ExportRequest: req, Workers: workers})
		if len(results) > 0 {
			summary, sumErr := svc.Summary(results)
			if sumErr != nil {
				deps.Logger.Warn("render course summary", zap.Error(sumErr))
			} else {
				fmt.Fprint(inv.Stdout, string(summary))
			}
			if inv.SummaryPDF {
				if pdfErr := writeSummaryPDF(svc, inv, results); pdfErr != nil {
					deps.Logger.Warn("write course summary pdf", zap.Error(pdfErr))
				}
			}
		}
		return err
	default:
		_, err := service.NewExportService(deps).Run(ctx, req)
		return err
	}
}

func writeSummaryPDF(svc *service.CourseExportService, inv invocation, results []service.CourseResult) error {
	payload, err := svc.SummaryPDF(inv.Kind, results)
	if err != nil {
		return err
	}
	store, err := storage.NewLocalStorage(inv.OutputDir)
	if err != nil {
		return err
	}
	file, err := store.Create(fmt.Sprintf("%s_export_summary.pdf", inv.Kind))
	if err != nil {
		return err
	}
	if _, err := file.Write(payload); err != nil {
		_ = file.Close()
		return appErrors.Wrap(err, appErrors.ErrWrite, "write summary pdf")
	}
	return file.Close()
}
