package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/middleware"
	"github.com/noah-isme/necta-results-api/internal/models"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
	"github.com/noah-isme/necta-results-api/pkg/response"
)

type resultsService interface {
	ClassReport(ctx context.Context, req dto.ClassReportRequest) (*models.CohortReport, bool, error)
	StudentReport(ctx context.Context, classID, examID, studentID string) (*models.StudentSummary, error)
	Preview(ctx context.Context, req dto.PreviewRequest) (*models.CohortReport, error)
	Grade(req dto.GradeRequest) (*models.GradedResult, error)
	BatchReports(ctx context.Context, req dto.BatchReportRequest) ([]dto.ClassReportResponse, error)
}

type recomputeScheduler interface {
	Schedule(ctx context.Context, req dto.RecomputeRequest) (*dto.RecomputeResponse, error)
}

// ResultsHandler exposes NECTA result computation endpoints.
type ResultsHandler struct {
	results   resultsService
	recompute recomputeScheduler
}

// NewResultsHandler constructs the results handler.
func NewResultsHandler(results resultsService, recompute recomputeScheduler) *ResultsHandler {
	return &ResultsHandler{results: results, recompute: recompute}
}

// Grade godoc
// @Summary Grade a single mark
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.GradeRequest true "Mark to grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/grade [post]
func (h *ResultsHandler) Grade(c *gin.Context) {
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	graded, err := h.results.Grade(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, graded)
}

// Preview godoc
// @Summary Compute a class report from posted marks
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.PreviewRequest true "Marks to score"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/preview [post]
func (h *ResultsHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	start := time.Now()
	report, err := h.results.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, middleware.ResponseMeta(c, start))
}

// ClassReport godoc
// @Summary Class result sheet
// @Tags Results
// @Produce json
// @Param classId path string true "Class ID"
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/classes/{classId}/exams/{examId} [get]
func (h *ResultsHandler) ClassReport(c *gin.Context) {
	start := time.Now()
	report, cached, err := h.results.ClassReport(c.Request.Context(), dto.ClassReportRequest{
		ClassID: c.Param("classId"),
		ExamID:  c.Param("examId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, report, middleware.ResponseMeta(c, start))
}

// StudentReport godoc
// @Summary Student result slip
// @Tags Results
// @Produce json
// @Param classId path string true "Class ID"
// @Param examId path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/classes/{classId}/exams/{examId}/students/{studentId} [get]
func (h *ResultsHandler) StudentReport(c *gin.Context) {
	summary, err := h.results.StudentReport(c.Request.Context(), c.Param("classId"), c.Param("examId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Batch godoc
// @Summary Result sheets for several classes
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.BatchReportRequest true "Exam and class IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/batch [post]
func (h *ResultsHandler) Batch(c *gin.Context) {
	var req dto.BatchReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	start := time.Now()
	reports, err := h.results.BatchReports(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.ResponseMeta(c, start)
	meta["classes"] = len(reports)
	response.JSON(c, http.StatusOK, reports, meta)
}

// Recompute godoc
// @Summary Schedule a class report rebuild
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.RecomputeRequest true "Class and exam"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/recompute [post]
func (h *ResultsHandler) Recompute(c *gin.Context) {
	if h.recompute == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "recompute queue not configured"))
		return
	}
	var req dto.RecomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	resp, err := h.recompute.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}
