package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/middleware"
	"github.com/noah-isme/necta-results-api/internal/models"
	"github.com/noah-isme/necta-results-api/internal/service"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
)

type resultsServiceMock struct {
	report     *models.CohortReport
	cached     bool
	summary    *models.StudentSummary
	graded     *models.GradedResult
	batch      []dto.ClassReportResponse
	err        error
	lastReq    dto.ClassReportRequest
	lastBatch  dto.BatchReportRequest
	lastGrade  dto.GradeRequest
	lastParams []string
}

func (m *resultsServiceMock) ClassReport(_ context.Context, req dto.ClassReportRequest) (*models.CohortReport, bool, error) {
	m.lastReq = req
	return m.report, m.cached, m.err
}

func (m *resultsServiceMock) StudentReport(_ context.Context, classID, examID, studentID string) (*models.StudentSummary, error) {
	m.lastParams = []string{classID, examID, studentID}
	return m.summary, m.err
}

func (m *resultsServiceMock) Preview(_ context.Context, _ dto.PreviewRequest) (*models.CohortReport, error) {
	return m.report, m.err
}

func (m *resultsServiceMock) Grade(req dto.GradeRequest) (*models.GradedResult, error) {
	m.lastGrade = req
	return m.graded, m.err
}

func (m *resultsServiceMock) BatchReports(_ context.Context, req dto.BatchReportRequest) ([]dto.ClassReportResponse, error) {
	m.lastBatch = req
	return m.batch, m.err
}

type recomputeMock struct {
	resp *dto.RecomputeResponse
	err  error
}

func (m *recomputeMock) Schedule(context.Context, dto.RecomputeRequest) (*dto.RecomputeResponse, error) {
	return m.resp, m.err
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newResultsRouter(results resultsService, recompute recomputeScheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewResultsHandler(results, recompute)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	g := r.Group("/api/v1/results")
	g.POST("/grade", h.Grade)
	g.POST("/preview", h.Preview)
	g.POST("/batch", h.Batch)
	g.POST("/recompute", h.Recompute)
	g.GET("/classes/:classId/exams/:examId", h.ClassReport)
	g.GET("/classes/:classId/exams/:examId/students/:studentId", h.StudentReport)
	return r
}

func perform(r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestResultsHandlerClassReport(t *testing.T) {
	mock := &resultsServiceMock{
		report: &models.CohortReport{ClassID: "form-6a", ExamID: "exam-1", ClassPassRate: 50},
		cached: true,
	}
	r := newResultsRouter(mock, nil)

	w, env := perform(r, http.MethodGet, "/api/v1/results/classes/form-6a/exams/exam-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ClassReportRequest{ClassID: "form-6a", ExamID: "exam-1"}, mock.lastReq)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, true, env.Meta["cache_hit"])

	var report models.CohortReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 50.0, report.ClassPassRate)
}

func TestResultsHandlerClassReportNotFound(t *testing.T) {
	mock := &resultsServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}
	r := newResultsRouter(mock, nil)

	w, env := perform(r, http.MethodGet, "/api/v1/results/classes/nope/exams/exam-1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestResultsHandlerStudentReport(t *testing.T) {
	mock := &resultsServiceMock{summary: &models.StudentSummary{StudentID: "s1", Division: models.DivisionI, BestNPoints: models.Points(6)}}
	r := newResultsRouter(mock, nil)

	w, env := perform(r, http.MethodGet, "/api/v1/results/classes/form-6a/exams/exam-1/students/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"form-6a", "exam-1", "s1"}, mock.lastParams)
	assert.JSONEq(t, `6`, string(mustField(t, env.Data, "best_n_points")))
	assert.JSONEq(t, `"I"`, string(mustField(t, env.Data, "division")))
}

func TestResultsHandlerGrade(t *testing.T) {
	mock := &resultsServiceMock{graded: &models.GradedResult{Grade: models.GradeB, Points: 2, Remarks: "Very Good"}}
	r := newResultsRouter(mock, nil)

	w, env := perform(r, http.MethodPost, "/api/v1/results/grade", map[string]interface{}{"marks": 72, "education_level": "A_LEVEL"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.lastGrade.Marks)
	assert.Equal(t, 72.0, *mock.lastGrade.Marks)
	assert.JSONEq(t, `"B"`, string(mustField(t, env.Data, "grade")))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/results/grade", bytes.NewBufferString("{"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResultsHandlerPreview(t *testing.T) {
	mock := &resultsServiceMock{report: &models.CohortReport{ClassID: "draft"}}
	r := newResultsRouter(mock, nil)

	w, env := perform(r, http.MethodPost, "/api/v1/results/preview", dto.PreviewRequest{EducationLevel: models.LevelOrdinary})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestResultsHandlerBatch(t *testing.T) {
	mock := &resultsServiceMock{batch: []dto.ClassReportResponse{{ClassID: "a"}, {ClassID: "b", Cached: true}}}
	r := newResultsRouter(mock, nil)

	w, env := perform(r, http.MethodPost, "/api/v1/results/batch", dto.BatchReportRequest{ExamID: "exam-1", ClassIDs: []string{"a", "b"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b"}, mock.lastBatch.ClassIDs)
	assert.Equal(t, float64(2), env.Meta["classes"])
}

func TestResultsHandlerRecompute(t *testing.T) {
	r := newResultsRouter(&resultsServiceMock{}, &recomputeMock{resp: &dto.RecomputeResponse{JobID: "job-1", Status: "queued"}})
	w, env := perform(r, http.MethodPost, "/api/v1/results/recompute", dto.RecomputeRequest{ClassID: "form-6a", ExamID: "exam-1"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `"queued"`, string(mustField(t, env.Data, "status")))

	r = newResultsRouter(&resultsServiceMock{}, nil)
	w, _ = perform(r, http.MethodPost, "/api/v1/results/recompute", dto.RecomputeRequest{ClassID: "form-6a", ExamID: "exam-1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type exportServiceMock struct {
	resp     *dto.ExportResponse
	download *service.ExportDownload
	err      error
}

func (m *exportServiceMock) Export(context.Context, dto.ExportRequest) (*dto.ExportResponse, error) {
	return m.resp, m.err
}

func (m *exportServiceMock) Resolve(context.Context, string) (*service.ExportDownload, error) {
	return m.download, m.err
}

func TestExportHandlerCreateAndDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "sheet.csv")
	require.NoError(t, os.WriteFile(path, []byte("Pos,Student\n1,s1\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mock := &exportServiceMock{
		resp:     &dto.ExportResponse{ID: "exp-1", Format: models.ExportFormatCSV, URL: "/api/v1/results/export/tok"},
		download: &service.ExportDownload{File: file, Filename: "sheet.csv", ContentType: "text/csv"},
	}
	h := NewExportHandler(mock)
	r := gin.New()
	r.POST("/results/export", h.Create)
	r.GET("/results/export/:token", h.Download)

	w, env := perform(r, http.MethodPost, "/results/export", dto.ExportRequest{ClassID: "form-6a", ExamID: "exam-1", Format: models.ExportFormatCSV})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `"/api/v1/results/export/tok"`, string(mustField(t, env.Data, "url")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/results/export/tok", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sheet.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Pos,Student\n1,s1\n", w.Body.String())
}

func TestExportHandlerExpiredLink(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewExportHandler(&exportServiceMock{err: appErrors.Clone(appErrors.ErrLinkExpired, "download link expired")})
	r := gin.New()
	r.GET("/results/export/:token", h.Download)

	w, env := perform(r, http.MethodGet, "/results/export/old", nil)
	require.Equal(t, http.StatusGone, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "LINK_EXPIRED", env.Error.Code)
}

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(service.NewMetricsService(), map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Prometheus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	h = NewMetricsHandler(nil, map[string]HealthCheck{
		"redis": func(context.Context) error { return assert.AnError },
	})
	r = gin.New()
	r.GET("/health", h.Health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func mustField(t *testing.T, raw json.RawMessage, field string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	value, ok := fields[field]
	require.True(t, ok, "missing field %s", field)
	return value
}
