package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
	"github.com/noah-isme/sma-results-api/pkg/export"
	"github.com/noah-isme/sma-results-api/pkg/storage"
)

type performanceSource interface {
	ClassPerformance(ctx context.Context, filter models.PerformanceFilter, role models.UserRole) (*models.ClassPerformance, bool, error)
}

// ExportStorage persists rendered export files.
type ExportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix        string
	ResultTTL        time.Duration
	CSVByteOrderMark bool
}

// RenderedExport is a broadsheet rendered in memory.
type RenderedExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportResult captures a stored export and its signed download link.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders class broadsheets and manages the stored files.
type ExportService struct {
	performance performanceSource
	storage     ExportStorage
	signer      *storage.SignedURLSigner
	csv         datasetRenderer
	pdf         datasetRenderer
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService. files and signer may be nil when
// only synchronous downloads are served.
func NewExportService(performance performanceSource, files ExportStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	var csvOpts []export.CSVOption
	if cfg.CSVByteOrderMark {
		csvOpts = append(csvOpts, export.WithByteOrderMark())
	}
	return &ExportService{
		performance: performance,
		storage:     files,
		signer:      signer,
		csv:         export.NewCSVExporter(csvOpts...),
		pdf:         export.NewPDFExporter(),
		validator:   validator.New(),
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// RenderRequest validates a download request and renders it for the caller's role.
func (s *ExportService) RenderRequest(ctx context.Context, req dto.ExportRequest, role models.UserRole) (*RenderedExport, error) {
	params, err := ValidateExportRequest(s.validator, req)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, params, role)
}

// Render builds and renders the broadsheet described by params.
func (s *ExportService) Render(ctx context.Context, params models.ExportJobParams, role models.UserRole) (*RenderedExport, error) {
	if !params.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	perf, _, err := s.performance.ClassPerformance(ctx, params.Filter(), role)
	if err != nil {
		return nil, err
	}

	dataset := BroadsheetDataset(*perf)
	renderer := s.csv
	if params.Format == models.ExportFormatPDF {
		renderer = s.pdf
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		s.metrics.RecordExport(string(params.Format), "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render broadsheet")
	}
	s.metrics.RecordExport(string(params.Format), "rendered")

	return &RenderedExport{
		Filename:    s.filename(*perf, params.Format),
		ContentType: params.Format.ContentType(),
		Payload:     payload,
	}, nil
}

// Generate renders the job's broadsheet, stores it and signs a download link.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("export job is nil")
	}
	if s.storage == nil || s.signer == nil {
		return nil, fmt.Errorf("export storage is not configured")
	}
	rendered, err := s.Render(ctx, job.Params, "")
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(job.ID+"/"+rendered.Filename, rendered.Payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	if s.signer == nil {
		return "", "", time.Time{}, storage.ErrTokenSignature
	}
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) filename(perf models.ClassPerformance, format models.ExportFormat) string {
	parts := []string{"broadsheet", sanitizeFilename(perf.ClassName), sanitizeFilename(perf.Session)}
	if perf.Term != "" {
		parts = append(parts, sanitizeFilename(string(perf.Term)))
	}
	parts = append(parts, s.now().UTC().Format("20060102_150405"))
	return strings.ToLower(strings.Join(parts, "_")) + "." + string(format)
}

// BroadsheetDataset lays a class performance view out as an exportable table.
func BroadsheetDataset(perf models.ClassPerformance) export.Dataset {
	title := fmt.Sprintf("%s Broadsheet - %s", perf.ClassName, perf.Session)
	if perf.Term != "" {
		title += " " + string(perf.Term)
	} else {
		title += " Cumulative"
	}

	stats := perf.Stats
	bands := make([]string, 0, len(models.GradeBands))
	for _, grade := range models.GradeBands {
		bands = append(bands, fmt.Sprintf("%s: %d", grade, stats.GradeCounts[grade]))
	}

	return export.Dataset{
		Title:   title,
		Headers: scoring.BroadsheetHeaders(perf.Subjects),
		Rows:    scoring.BroadsheetRows(perf),
		Footer: []string{
			fmt.Sprintf("Class average: %.2f%%", stats.Average),
			fmt.Sprintf("Highest: %d%%   Lowest: %d%%", stats.Highest, stats.Lowest),
			fmt.Sprintf("Students with results: %d of %d", stats.Counted, stats.Total),
			"Grades: " + strings.Join(bands, "   "),
		},
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-", "..", ".", "_", "-")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}
