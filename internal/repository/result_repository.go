package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// ResultRepository reads the raw marks the scoring engine consumes.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

type resultRow struct {
	models.SubjectResult
	GradeOverride  sql.NullString `db:"grade_override"`
	PointsOverride sql.NullInt64  `db:"points_override"`
}

// ListByClassExam returns every student x subject mark of a class for an exam.
// Students enrolled in a subject without a mark yet come back with nil marks.
func (r *ResultRepository) ListByClassExam(ctx context.Context, classID, examID string) ([]models.SubjectResult, error) {
	const query = `
SELECT st.id AS student_id, st.full_name AS student_name,
       s.id AS subject_id, s.code AS subject_code, s.name AS subject_name,
       er.marks_obtained,
       COALESCE(cs.is_principal, FALSE) AS is_principal,
       c.education_level,
       er.grade_override, er.points_override
FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN classes c ON c.id = e.class_id
JOIN class_subjects cs ON cs.class_id = c.id
JOIN subjects s ON s.id = cs.subject_id
LEFT JOIN exam_results er ON er.student_id = st.id AND er.subject_id = s.id AND er.exam_id = $2
WHERE e.class_id = $1 AND e.status = 'ACTIVE'
ORDER BY st.id, s.code`
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, examID); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	results := make([]models.SubjectResult, 0, len(rows))
	for _, row := range rows {
		result := row.SubjectResult
		result.ExamID = examID
		if row.GradeOverride.Valid && row.PointsOverride.Valid {
			result.Override = &models.GradeOverride{
				Grade:  models.Grade(row.GradeOverride.String),
				Points: int(row.PointsOverride.Int64),
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Roster lists the active students of a class.
func (r *ResultRepository) Roster(ctx context.Context, classID string) ([]models.StudentRef, error) {
	const query = `SELECT st.id AS student_id, st.full_name AS student_name
FROM enrollments e JOIN students st ON st.id = e.student_id
WHERE e.class_id = $1 AND e.status = 'ACTIVE' ORDER BY st.id`
	var roster []models.StudentRef
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}

// ClassLevel returns the education level a class is examined under.
func (r *ResultRepository) ClassLevel(ctx context.Context, classID string) (models.EducationLevel, error) {
	const query = `SELECT education_level FROM classes WHERE id = $1`
	var level models.EducationLevel
	if err := r.db.GetContext(ctx, &level, query, classID); err != nil {
		return "", fmt.Errorf("get class level: %w", err)
	}
	return level, nil
}
