package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// ExportRepository persists result sheet export metadata.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts an export row, filling the ID and creation time when empty.
func (r *ExportRepository) Create(ctx context.Context, exp *models.ResultExport) error {
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO result_exports (id, class_id, exam_id, format, path, token, created_at, expires_at)
VALUES (:id, :class_id, :exam_id, :format, :path, :token, :created_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exp); err != nil {
		return fmt.Errorf("create result export: %w", err)
	}
	return nil
}

// GetByID returns an export row.
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*models.ResultExport, error) {
	const query = `SELECT id, class_id, exam_id, format, path, token, created_at, expires_at FROM result_exports WHERE id = $1`
	var exp models.ResultExport
	if err := r.db.GetContext(ctx, &exp, query, id); err != nil {
		return nil, fmt.Errorf("get result export: %w", err)
	}
	return &exp, nil
}

// ListExpired returns exports that expired before cutoff, oldest first.
func (r *ExportRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.ResultExport, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, class_id, exam_id, format, path, token, created_at, expires_at
FROM result_exports WHERE expires_at < $1 ORDER BY expires_at ASC LIMIT $2`
	var exports []models.ResultExport
	if err := r.db.SelectContext(ctx, &exports, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list expired result exports: %w", err)
	}
	return exports, nil
}

// Delete removes an export row.
func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM result_exports WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete result export: %w", err)
	}
	return nil
}
