package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/models"
	"github.com/noah-isme/necta-results-api/internal/scoring"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
)

type resultReader interface {
	ListByClassExam(ctx context.Context, classID, examID string) ([]models.SubjectResult, error)
	Roster(ctx context.Context, classID string) ([]models.StudentRef, error)
	ClassLevel(ctx context.Context, classID string) (models.EducationLevel, error)
}

type combinationReader interface {
	PrincipalSubjects(ctx context.Context, classID string) (scoring.Combinations, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, pattern string) error
}

// ResultsServiceConfig tunes caching and batch fan-out.
type ResultsServiceConfig struct {
	CacheTTL         time.Duration
	BatchConcurrency int
}

// ResultsService loads marks, runs the scoring engine and caches class reports.
type ResultsService struct {
	results      resultReader
	combinations combinationReader
	engine       *scoring.Engine
	cache        reportCache
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ResultsServiceConfig
}

// NewResultsService wires the results service. cache and metrics may be nil.
func NewResultsService(results resultReader, combinations combinationReader, engine *scoring.Engine, cache reportCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ResultsServiceConfig) *ResultsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	return &ResultsService{
		results:      results,
		combinations: combinations,
		engine:       engine,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// ClassReport returns the cohort report of a class for an exam and whether it came from cache.
func (s *ResultsService) ClassReport(ctx context.Context, req dto.ClassReportRequest) (*models.CohortReport, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "class_id and exam_id are required")
	}
	key := ClassReportCacheKey(req.ClassID, req.ExamID)
	if s.cache != nil {
		var cached models.CohortReport
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}
	report, err := s.build(ctx, req.ClassID, req.ExamID)
	if err != nil {
		return nil, false, err
	}
	s.store(ctx, key, report)
	return report, false, nil
}

// Refresh drops the cached report of a class, rebuilds it and caches the result.
func (s *ResultsService) Refresh(ctx context.Context, classID, examID string) (*models.CohortReport, error) {
	if err := s.Invalidate(ctx, classID, examID); err != nil {
		s.logger.Warn("stale class report left in cache", zap.String("class_id", classID), zap.String("exam_id", examID), zap.Error(err))
	}
	report, err := s.build(ctx, classID, examID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, ClassReportCacheKey(classID, examID), report)
	return report, nil
}

// StudentReport returns one student's summary. Rank and subject positions
// depend on the cohort, so the whole class report is built first.
func (s *ResultsService) StudentReport(ctx context.Context, classID, examID, studentID string) (*models.StudentSummary, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	report, _, err := s.ClassReport(ctx, dto.ClassReportRequest{ClassID: classID, ExamID: examID})
	if err != nil {
		return nil, err
	}
	summary, ok := report.Student(studentID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in class results")
	}
	return summary, nil
}

// Preview scores posted marks without reading or writing storage.
func (s *ResultsService) Preview(ctx context.Context, req dto.PreviewRequest) (*models.CohortReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}
	results := make([]models.SubjectResult, 0, len(req.Results))
	for _, in := range req.Results {
		results = append(results, models.SubjectResult{
			StudentID:      in.StudentID,
			StudentName:    in.StudentName,
			SubjectID:      in.SubjectID,
			SubjectCode:    in.SubjectCode,
			SubjectName:    in.SubjectName,
			ExamID:         req.ExamID,
			Marks:          in.Marks,
			IsPrincipal:    in.IsPrincipal,
			EducationLevel: req.EducationLevel,
		})
	}
	input := scoring.CohortInput{
		ClassID: req.ClassID,
		ExamID:  req.ExamID,
		Level:   req.EducationLevel,
		Results: results,
		Roster:  req.Roster,
	}
	if len(req.Combinations) > 0 {
		input.Combinations = scoring.Combinations(req.Combinations)
	}
	return s.aggregate(ctx, input)
}

// Grade grades a single marks value.
func (s *ResultsService) Grade(req dto.GradeRequest) (*models.GradedResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	graded, err := s.engine.GradeResult(models.SubjectResult{
		SubjectID:      req.SubjectID,
		Marks:          req.Marks,
		IsPrincipal:    req.IsPrincipal,
		EducationLevel: req.EducationLevel,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "marks could not be graded")
	}
	return &graded, nil
}

// BatchReports builds the reports of several classes concurrently. The first
// failing class cancels the rest and fails the batch.
func (s *ResultsService) BatchReports(ctx context.Context, req dto.BatchReportRequest) ([]dto.ClassReportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	out := make([]dto.ClassReportResponse, len(req.ClassIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, classID := range req.ClassIDs {
		i, classID := i, classID
		g.Go(func() error {
			report, cached, err := s.ClassReport(gctx, dto.ClassReportRequest{ClassID: classID, ExamID: req.ExamID})
			if err != nil {
				return err
			}
			out[i] = dto.ClassReportResponse{ClassID: classID, Cached: cached, Report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops the cached report of a class for an exam.
func (s *ResultsService) Invalidate(ctx context.Context, classID, examID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, ClassReportCacheKey(classID, examID)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate class report")
	}
	return nil
}

// InvalidateExam drops the cached reports of every class for an exam.
func (s *ResultsService) InvalidateExam(ctx context.Context, examID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, ExamReportsCachePattern(examID)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate exam reports")
	}
	return nil
}

func (s *ResultsService) build(ctx context.Context, classID, examID string) (*models.CohortReport, error) {
	start := time.Now()
	level, err := s.results.ClassLevel(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	results, err := s.results.ListByClassExam(ctx, classID, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam results")
	}
	roster, err := s.results.Roster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	input := scoring.CohortInput{
		ClassID: classID,
		ExamID:  examID,
		Level:   level,
		Results: results,
		Roster:  roster,
	}
	if level == models.LevelAdvanced && s.combinations != nil {
		combos, err := s.combinations.PrincipalSubjects(ctx, classID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject combinations")
		}
		input.Combinations = combos
	}
	s.metrics.ObserveDBQuery("class_results", time.Since(start))
	return s.aggregate(ctx, input)
}

func (s *ResultsService) aggregate(ctx context.Context, input scoring.CohortInput) (*models.CohortReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	report, err := s.engine.Aggregate(input)
	if err != nil {
		if errors.Is(err, scoring.ErrUnknownLevel) || errors.Is(err, scoring.ErrInvalidPolicy) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute results")
	}
	failures := 0
	for _, st := range report.Students {
		if st.Failure != "" {
			failures++
		}
	}
	s.metrics.ObserveCohort(string(report.EducationLevel), time.Since(start), failures)
	s.logger.Debug("cohort report computed",
		zap.String("class_id", input.ClassID),
		zap.String("exam_id", input.ExamID),
		zap.Int("students", len(report.Students)),
		zap.Int("failures", failures),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (s *ResultsService) store(ctx context.Context, key string, report *models.CohortReport) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, report, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("class report not cached", zap.String("key", key), zap.Error(err))
	}
}
