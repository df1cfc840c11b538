package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/necta-results-api/internal/scoring"
)

// CombinationRepository resolves A-Level subject combinations (e.g. PCM, HGL).
type CombinationRepository struct {
	db *sqlx.DB
}

// NewCombinationRepository creates a combination repository.
func NewCombinationRepository(db *sqlx.DB) *CombinationRepository {
	return &CombinationRepository{db: db}
}

// PrincipalSubjects maps each student of the class to the principal subject
// IDs of their combination. Students without a combination are absent.
func (r *CombinationRepository) PrincipalSubjects(ctx context.Context, classID string) (scoring.Combinations, error) {
	const query = `
SELECT sc.student_id, cs.subject_id
FROM student_combinations sc
JOIN combination_subjects cs ON cs.combination_id = sc.combination_id
JOIN enrollments e ON e.student_id = sc.student_id AND e.status = 'ACTIVE'
WHERE e.class_id = $1 AND cs.is_principal = TRUE
ORDER BY sc.student_id, cs.subject_id`
	rows, err := r.db.QueryxContext(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("list student combinations: %w", err)
	}
	defer rows.Close()

	combos := make(scoring.Combinations)
	for rows.Next() {
		var studentID, subjectID string
		if err := rows.Scan(&studentID, &subjectID); err != nil {
			return nil, fmt.Errorf("scan student combination: %w", err)
		}
		combos[studentID] = append(combos[studentID], subjectID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student combinations: %w", err)
	}
	return combos, nil
}
