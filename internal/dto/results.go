package dto

import (
	"time"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// ClassReportRequest identifies a class result sheet.
type ClassReportRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	ExamID  string `json:"exam_id" validate:"required"`
}

// GradeRequest captures POST /results/grade payload.
type GradeRequest struct {
	SubjectID      string                `json:"subject_id"`
	Marks          *float64              `json:"marks" validate:"omitempty,gte=0,lte=100"`
	EducationLevel models.EducationLevel `json:"education_level" validate:"required,oneof=O_LEVEL A_LEVEL"`
	IsPrincipal    bool                  `json:"is_principal"`
}

// ResultInput is one posted mark for a preview computation.
type ResultInput struct {
	StudentID   string   `json:"student_id" validate:"required"`
	StudentName string   `json:"student_name"`
	SubjectID   string   `json:"subject_id" validate:"required"`
	SubjectCode string   `json:"subject_code"`
	SubjectName string   `json:"subject_name"`
	Marks       *float64 `json:"marks" validate:"omitempty,gte=0,lte=100"`
	IsPrincipal bool     `json:"is_principal"`
}

// PreviewRequest computes a cohort report from posted marks without touching storage.
type PreviewRequest struct {
	ClassID        string                `json:"class_id"`
	ExamID         string                `json:"exam_id"`
	EducationLevel models.EducationLevel `json:"education_level" validate:"required,oneof=O_LEVEL A_LEVEL"`
	Results        []ResultInput         `json:"results" validate:"required,min=1,dive"`
	Roster         []models.StudentRef   `json:"roster,omitempty"`
	// Combinations maps student IDs to their principal subject IDs.
	Combinations map[string][]string `json:"combinations,omitempty"`
}

// BatchReportRequest asks for several class reports of one exam.
type BatchReportRequest struct {
	ExamID   string   `json:"exam_id" validate:"required"`
	ClassIDs []string `json:"class_ids" validate:"required,min=1,max=50,unique,dive,required"`
}

// ClassReportResponse wraps a report with its cache provenance.
type ClassReportResponse struct {
	ClassID string               `json:"class_id"`
	Cached  bool                 `json:"cached"`
	Report  *models.CohortReport `json:"report"`
}

// RecomputeRequest schedules a rebuild of a cached class report. Without a
// class the cached reports of every class sitting the exam are dropped.
type RecomputeRequest struct {
	ClassID string `json:"class_id"`
	ExamID  string `json:"exam_id" validate:"required"`
}

// RecomputeResponse is returned after scheduling a recompute.
type RecomputeResponse struct {
	JobID  string `json:"job_id,omitempty"`
	Status string `json:"status"`
}

// ExportRequest captures POST /results/export payload.
type ExportRequest struct {
	ClassID string              `json:"class_id" validate:"required"`
	ExamID  string              `json:"exam_id" validate:"required"`
	Format  models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse carries the signed download link of a rendered sheet.
type ExportResponse struct {
	ID        string              `json:"id"`
	Format    models.ExportFormat `json:"format"`
	URL       string              `json:"url"`
	ExpiresAt time.Time           `json:"expires_at"`
}
