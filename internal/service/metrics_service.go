package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	"github.com/noah-isme/learnupon-exporter/pkg/config"
)

// MetricsService encapsulates Prometheus instrumentation for one export run.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry      *prometheus.Registry
	rowsTotal     *prometheus.CounterVec
	filesTotal    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	uploadsTotal  *prometheus.CounterVec
	lookupsTotal  *prometheus.CounterVec
	runTimestamp  prometheus.Gauge
	pushgateway   string
	jobName       string
	logger        *zap.Logger
	rowCount      uint64
	failedFiles   uint64
	uploadedFiles uint64
}

// MetricsSnapshot summarises what the run recorded.
type MetricsSnapshot struct {
	Rows          uint64
	FailedFiles   uint64
	UploadedFiles uint64
}

const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultDisabled = "disabled"
)

// NewMetricsService registers export collectors on a private registry.
func NewMetricsService(cfg config.MetricsConfig, logger *zap.Logger) *MetricsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()

	rowsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "learnupon_export_rows_total",
		Help: "Total number of CSV data rows written",
	}, []string{"kind"})

	filesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "learnupon_export_files_total",
		Help: "Export files produced, by outcome",
	}, []string{"kind", "result"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "learnupon_export_duration_seconds",
		Help:    "Duration of one export file from query to upload",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"kind"})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "learnupon_export_uploads_total",
		Help: "Object storage uploads, by outcome",
	}, []string{"result"})

	lookupsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "learnupon_export_contact_lookups_total",
		Help: "LearnUpon contact resolutions, by source",
	}, []string{"source"})

	runTimestamp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "learnupon_export_last_run_timestamp_seconds",
		Help: "Unix time the run finished",
	})

	registry.MustRegister(rowsTotal, filesTotal, duration, uploadsTotal, lookupsTotal, runTimestamp)

	return &MetricsService{
		registry:     registry,
		rowsTotal:    rowsTotal,
		filesTotal:   filesTotal,
		duration:     duration,
		uploadsTotal: uploadsTotal,
		lookupsTotal: lookupsTotal,
		runTimestamp: runTimestamp,
		pushgateway:  cfg.PushgatewayURL,
		jobName:      cfg.JobName,
		logger:       logger,
	}
}

// Registry exposes the collectors for tests and custom gatherers.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFile records the outcome of one export file.
func (m *MetricsService) ObserveFile(kind models.ReportKind, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultFailure
		atomic.AddUint64(&m.failedFiles, 1)
	}
	m.filesTotal.WithLabelValues(string(kind), result).Inc()
	m.rowsTotal.WithLabelValues(string(kind)).Add(float64(rows))
	m.duration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	atomic.AddUint64(&m.rowCount, uint64(rows))
}

// ObserveUpload records an upload attempt. uploaded is false when uploading
// is disabled.
func (m *MetricsService) ObserveUpload(uploaded bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.uploadsTotal.WithLabelValues(resultFailure).Inc()
	case uploaded:
		m.uploadsTotal.WithLabelValues(resultSuccess).Inc()
		atomic.AddUint64(&m.uploadedFiles, 1)
	default:
		m.uploadsTotal.WithLabelValues(resultDisabled).Inc()
	}
}

// ObserveContactLookup counts a contact resolution served from source
// (memory, cache or api).
func (m *MetricsService) ObserveContactLookup(source string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(source).Inc()
}

// Snapshot returns aggregated counters for the run summary.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Rows:          atomic.LoadUint64(&m.rowCount),
		FailedFiles:   atomic.LoadUint64(&m.failedFiles),
		UploadedFiles: atomic.LoadUint64(&m.uploadedFiles),
	}
}

// Push sends the collected metrics to the configured Pushgateway grouped by
// run id. It is a no-op when no gateway is configured.
func (m *MetricsService) Push(ctx context.Context, runID string) error {
	if m == nil || m.pushgateway == "" {
		return nil
	}
	m.runTimestamp.SetToCurrentTime()

	jobName := m.jobName
	if jobName == "" {
		jobName = "learnupon_exporter"
	}
	pusher := push.New(m.pushgateway, jobName).
		Gatherer(m.registry).
		Grouping("run_id", runID)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", m.pushgateway, err)
	}
	m.logger.Debug("pushed metrics", zap.String("gateway", m.pushgateway), zap.String("run_id", runID))
	return nil
}
