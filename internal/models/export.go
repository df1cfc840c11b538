package models

import "time"

// ExportFormat enumerates result sheet formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether the format can be rendered.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ResultExport records a rendered result sheet and its download token.
type ResultExport struct {
	ID        string       `db:"id" json:"id"`
	ClassID   string       `db:"class_id" json:"class_id"`
	ExamID    string       `db:"exam_id" json:"exam_id"`
	Format    ExportFormat `db:"format" json:"format"`
	Path      string       `db:"path" json:"-"`
	Token     string       `db:"token" json:"-"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt time.Time    `db:"expires_at" json:"expires_at"`
}
