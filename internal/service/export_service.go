package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/models"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
	"github.com/noah-isme/necta-results-api/pkg/export"
	"github.com/noah-isme/necta-results-api/pkg/storage"
)

type classReporter interface {
	ClassReport(ctx context.Context, req dto.ClassReportRequest) (*models.CohortReport, bool, error)
}

type exportStore interface {
	Create(ctx context.Context, exp *models.ResultExport) error
	GetByID(ctx context.Context, id string) (*models.ResultExport, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.ResultExport, error)
	Delete(ctx context.Context, id string) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type sheetRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	CleanupInterval time.Duration
}

// ExportDownload is an opened result sheet ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService renders class result sheets, stores them and hands out signed links.
type ExportService struct {
	results   classReporter
	repo      exportStore
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[models.ExportFormat]sheetRenderer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(results classReporter, repo exportStore, files fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &ExportService{
		results: results,
		repo:    repo,
		storage: files,
		signer:  signer,
		renderers: map[models.ExportFormat]sheetRenderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		},
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Export renders the class report in the requested format and returns a signed download link.
func (s *ExportService) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	renderer, ok := s.renderers[req.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}
	report, _, err := s.results.ClassReport(ctx, dto.ClassReportRequest{ClassID: req.ClassID, ExamID: req.ExamID})
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(BuildResultSheet(report, s.now().UTC()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render result sheet")
	}

	id := uuid.NewString()
	filename := path.Join(sanitizeFilename(req.ClassID), fmt.Sprintf("%s_%s.%s", sanitizeFilename(req.ExamID), s.now().UTC().Format("20060102_150405"), renderer.Extension()))
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store result sheet")
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	record := &models.ResultExport{
		ID:        id,
		ClassID:   req.ClassID,
		ExamID:    req.ExamID,
		Format:    req.Format,
		Path:      relPath,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export")
	}
	s.metrics.RecordExport(string(req.Format))

	return &dto.ExportResponse{
		ID:        id,
		Format:    req.Format,
		URL:       s.downloadURL(token),
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve validates a download token and opens the stored sheet.
func (s *ExportService) Resolve(ctx context.Context, token string) (*ExportDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrLinkExpired, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	record, err := s.repo.GetByID(ctx, claims.ExportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	if record.Token != token || record.Path != claims.Path {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(record.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	contentType := "application/octet-stream"
	if renderer, ok := s.renderers[record.Format]; ok {
		contentType = renderer.ContentType()
	}
	return &ExportDownload{
		File:        file,
		Filename:    path.Base(record.Path),
		ContentType: contentType,
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// StartCleanup purges expired exports every CleanupInterval until ctx is done.
func (s *ExportService) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Cleanup(ctx); err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

// Cleanup removes expired export rows with their files, then sweeps files
// older than the link TTL that no row points at. It returns the number of
// expired exports removed.
func (s *ExportService) Cleanup(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, s.now().UTC(), 100)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, exp := range expired {
		if err := s.storage.Delete(exp.Path); err != nil {
			s.logger.Warn("failed to delete export file", zap.String("export_id", exp.ID), zap.Error(err))
			continue
		}
		if err := s.repo.Delete(ctx, exp.ID); err != nil {
			s.logger.Warn("failed to delete export record", zap.String("export_id", exp.ID), zap.Error(err))
			continue
		}
		removed++
	}
	orphans, err := s.storage.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		return removed, err
	}
	if removed > 0 || len(orphans) > 0 {
		s.logger.Info("expired exports purged", zap.Int("records", removed), zap.Int("files", len(orphans)))
	}
	return removed, nil
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/results/export/%s", prefix, token)
}

// BuildResultSheet lays a cohort report out as a printable result sheet:
// one row per student with a "grade (marks)" cell per subject.
func BuildResultSheet(report *models.CohortReport, generatedAt time.Time) export.Sheet {
	sheet := export.Sheet{
		Title: fmt.Sprintf("Examination Results - %s", report.ClassID),
		Meta: []string{
			"Exam: " + report.ExamID,
			"Level: " + string(report.EducationLevel),
			"Ranked by: " + report.RankedBy,
			"Generated: " + generatedAt.Format(time.RFC3339),
		},
	}

	sheet.Headers = []string{"Pos", "Student", "Name"}
	for _, subject := range report.Subjects {
		label := subject.SubjectCode
		if label == "" {
			label = subject.SubjectID
		}
		sheet.Headers = append(sheet.Headers, label)
	}
	sheet.Headers = append(sheet.Headers, "Avg", "Points", "Div")

	for _, student := range report.Students {
		cells := make(map[string]string, len(student.Results))
		for _, r := range student.Results {
			cells[r.SubjectID] = gradeCell(r)
		}
		rank := "-"
		if student.Rank > 0 {
			rank = strconv.Itoa(student.Rank)
		}
		row := []string{rank, student.StudentID, student.StudentName}
		for _, subject := range report.Subjects {
			cell, ok := cells[subject.SubjectID]
			if !ok {
				cell = "-"
			}
			row = append(row, cell)
		}
		row = append(row,
			strconv.FormatFloat(student.AverageMarks, 'f', 2, 64),
			student.BestNPoints.String(),
			string(student.Division),
		)
		sheet.Rows = append(sheet.Rows, row)
	}

	divisions := make([]string, 0, len(models.Divisions()))
	for _, d := range models.Divisions() {
		divisions = append(divisions, fmt.Sprintf("%s: %d", d, report.DivisionDistribution[d]))
	}
	sheet.Summary = []string{
		"Divisions - " + strings.Join(divisions, ", "),
		fmt.Sprintf("Class average: %.2f", report.ClassAverage),
		fmt.Sprintf("Examination GPA: %.4f", report.ExaminationGPA),
		fmt.Sprintf("Pass rate: %.2f%%", report.ClassPassRate),
	}
	return sheet
}

func gradeCell(r models.GradedResult) string {
	if !r.HasMarks() {
		return string(models.GradeNone)
	}
	return fmt.Sprintf("%s (%s)", r.Grade, strconv.FormatFloat(*r.Marks, 'f', -1, 64))
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
