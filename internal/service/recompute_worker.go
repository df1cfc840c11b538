package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/models"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
	"github.com/noah-isme/necta-results-api/pkg/jobs"
)

// RecomputeJobType tags class report rebuild jobs.
const RecomputeJobType = "results.recompute"

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportRefresher interface {
	Refresh(ctx context.Context, classID, examID string) (*models.CohortReport, error)
	InvalidateExam(ctx context.Context, examID string) error
}

// RecomputeWorker rebuilds cached class reports after marks change upstream.
type RecomputeWorker struct {
	results   reportRefresher
	queue     jobDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecomputeWorker constructs a worker. Bind a queue with SetQueue before calling Schedule.
func NewRecomputeWorker(results reportRefresher, metrics *MetricsService, logger *zap.Logger) *RecomputeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeWorker{results: results, metrics: metrics, validator: validator.New(), logger: logger}
}

// SetQueue binds the dispatcher whose handler is Handle.
func (w *RecomputeWorker) SetQueue(queue jobDispatcher) {
	w.queue = queue
}

// Schedule enqueues a rebuild of one class report. Requests for a class and
// exam that is already waiting are coalesced into the waiting job. Without a
// class id the cached reports of the whole exam are dropped instead, and each
// class is rebuilt on its next read.
func (w *RecomputeWorker) Schedule(ctx context.Context, req dto.RecomputeRequest) (*dto.RecomputeResponse, error) {
	if err := w.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "exam_id is required")
	}
	if req.ClassID == "" {
		if w.results == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "results service not configured")
		}
		if err := w.results.InvalidateExam(ctx, req.ExamID); err != nil {
			return nil, err
		}
		w.metrics.RecordRecompute("invalidated")
		w.logger.Info("exam reports invalidated", zap.String("exam_id", req.ExamID))
		return &dto.RecomputeResponse{Status: "invalidated"}, nil
	}
	if w.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "recompute queue not configured")
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Key:     recomputeKey(req.ClassID, req.ExamID),
		Type:    RecomputeJobType,
		Payload: req,
	}
	if err := w.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrAlreadyQueued) {
			w.metrics.RecordRecompute("coalesced")
			return &dto.RecomputeResponse{Status: "already_queued"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue recompute job")
	}
	return &dto.RecomputeResponse{JobID: job.ID, Status: "queued"}, nil
}

// Handle processes a queue job.
func (w *RecomputeWorker) Handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.RecomputeRequest)
	if !ok {
		w.metrics.RecordRecompute("invalid")
		w.logger.Error("recompute job dropped", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	report, err := w.results.Refresh(ctx, req.ClassID, req.ExamID)
	if err != nil {
		w.metrics.RecordRecompute("failed")
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status < 500 {
			w.logger.Warn("recompute job rejected",
				zap.String("job_id", job.ID),
				zap.String("class_id", req.ClassID),
				zap.String("exam_id", req.ExamID),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("recompute %s: %w", job.Key, err)
	}
	w.metrics.RecordRecompute("succeeded")
	w.logger.Info("class report recomputed",
		zap.String("job_id", job.ID),
		zap.String("class_id", req.ClassID),
		zap.String("exam_id", req.ExamID),
		zap.Int("students", len(report.Students)),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}

func recomputeKey(classID, examID string) string {
	return classID + ":" + examID
}
