package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/models"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
	"github.com/noah-isme/necta-results-api/pkg/storage"
)

type memoryExportStore struct {
	mu      sync.Mutex
	exports map[string]models.ResultExport
}

func (m *memoryExportStore) Create(_ context.Context, exp *models.ResultExport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exports == nil {
		m.exports = make(map[string]models.ResultExport)
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	m.exports[exp.ID] = *exp
	return nil
}

func (m *memoryExportStore) GetByID(_ context.Context, id string) (*models.ResultExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.exports[id]
	if !ok {
		return nil, fmt.Errorf("get result export: %w", sql.ErrNoRows)
	}
	return &exp, nil
}

func (m *memoryExportStore) ListExpired(_ context.Context, cutoff time.Time, _ int) ([]models.ResultExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ResultExport
	for _, exp := range m.exports {
		if exp.ExpiresAt.Before(cutoff) {
			out = append(out, exp)
		}
	}
	return out, nil
}

func (m *memoryExportStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.exports, id)
	return nil
}

func newExportServiceForTest(t *testing.T, ttl time.Duration) (*ExportService, *memoryExportStore) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := &memoryExportStore{}
	results := newResultsServiceForTest(t, newStubResultRepo(), nil, true)
	signer := storage.NewSignedURLSigner("secret", ttl)
	svc := NewExportService(results, repo, store, signer, NewMetricsService(), zap.NewNop(), ExportConfig{APIPrefix: "/api/v1/"})
	return svc, repo
}

func TestExportServiceExportCSVAndResolve(t *testing.T) {
	svc, repo := newExportServiceForTest(t, time.Hour)
	ctx := context.Background()

	resp, err := svc.Export(ctx, dto.ExportRequest{ClassID: "form-6a", ExamID: "exam-1", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.URL, "/api/v1/results/export/"))
	assert.Equal(t, models.ExportFormatCSV, resp.Format)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	record, err := repo.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(record.Path, "form-6a/exam-1_"))
	assert.True(t, strings.HasSuffix(record.Path, ".csv"))

	token := strings.TrimPrefix(resp.URL, "/api/v1/results/export/")
	download, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Pos,Student,Name,CHE,MAT,PHY,Avg,Points,Div", lines[0])
	assert.Equal(t, "1,s1,Student s1,B (72),C (61),A (85),72.67,6,I", lines[1])
	assert.Equal(t, "-,s9,Baraka Said,-,-,-,0.00,-,-", lines[3])
}

func TestExportServiceExportPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, time.Hour)
	resp, err := svc.Export(context.Background(), dto.ExportRequest{ClassID: "form-6a", ExamID: "exam-1", Format: models.ExportFormatPDF})
	require.NoError(t, err)

	download, err := svc.Resolve(context.Background(), strings.TrimPrefix(resp.URL, "/api/v1/results/export/"))
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "application/pdf", download.ContentType)
	head := make([]byte, 4)
	_, err = io.ReadFull(download.File, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))
}

func TestExportServiceExportErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t, time.Hour)
	var appErr *appErrors.Error

	_, err := svc.Export(context.Background(), dto.ExportRequest{ClassID: "form-6a", ExamID: "exam-1", Format: "xlsx"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Export(context.Background(), dto.ExportRequest{ClassID: "missing", ExamID: "exam-1", Format: models.ExportFormatCSV})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestExportServiceResolveRejectsBadTokens(t *testing.T) {
	svc, repo := newExportServiceForTest(t, time.Hour)
	ctx := context.Background()
	var appErr *appErrors.Error

	_, err := svc.Resolve(ctx, "not-a-token")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	resp, err := svc.Export(ctx, dto.ExportRequest{ClassID: "form-6a", ExamID: "exam-1", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	token := strings.TrimPrefix(resp.URL, "/api/v1/results/export/")

	require.NoError(t, repo.Delete(ctx, resp.ID))
	_, err = svc.Resolve(ctx, token)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestExportServiceExpiredLinkAndCleanup(t *testing.T) {
	svc, repo := newExportServiceForTest(t, time.Nanosecond)
	ctx := context.Background()

	resp, err := svc.Export(ctx, dto.ExportRequest{ClassID: "form-6a", ExamID: "exam-1", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	record, err := repo.GetByID(ctx, resp.ID)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, record.Token)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLinkExpired.Code, appErr.Code)

	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	removed, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = repo.GetByID(ctx, resp.ID)
	require.Error(t, err)
}

func TestBuildResultSheetSummary(t *testing.T) {
	report := &models.CohortReport{
		ClassID:        "form-4a",
		ExamID:         "mock",
		EducationLevel: models.LevelOrdinary,
		RankedBy:       "points",
		Subjects:       []models.SubjectAnalysis{{SubjectID: "bio", SubjectCode: "BIO"}},
		Students: []models.StudentSummary{{
			StudentID:    "s1",
			StudentName:  "Zawadi",
			Rank:         1,
			AverageMarks: 81,
			BestNPoints:  models.Points(7),
			Division:     models.DivisionI,
			Results:      []models.GradedResult{{SubjectResult: models.SubjectResult{SubjectID: "bio", Marks: floatPtr(81)}, Grade: models.GradeA}},
		}},
		DivisionDistribution: map[models.Division]int{models.DivisionI: 1},
		ClassAverage:         81,
		ExaminationGPA:       7,
		ClassPassRate:        100,
	}

	sheet := BuildResultSheet(report, time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "Examination Results - form-4a", sheet.Title)
	assert.Contains(t, sheet.Meta, "Generated: 2024-11-20T08:00:00Z")
	assert.Equal(t, []string{"Pos", "Student", "Name", "BIO", "Avg", "Points", "Div"}, sheet.Headers)
	assert.Equal(t, [][]string{{"1", "s1", "Zawadi", "A (81)", "81.00", "7", "I"}}, sheet.Rows)
	assert.Equal(t, "Divisions - I: 1, II: 0, III: 0, IV: 0, 0: 0, -: 0", sheet.Summary[0])
	assert.Equal(t, "Pass rate: 100.00%", sheet.Summary[3])
}
