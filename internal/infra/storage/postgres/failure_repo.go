package postgres

import (
	"context"
	"fmt"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// FailureRepo mirrors failure records into the failures table.
type FailureRepo struct {
	db *DB
}

// NewFailureRepo creates a new PostgreSQL failure repository.
func NewFailureRepo(db *DB) *FailureRepo {
	return &FailureRepo{db: db}
}

const insertFailure = `
	INSERT INTO failures (run_id, entity_type, entity_id, status_code, attempts, failed_at)
	VALUES (:run_id, :entity_type, :entity_id, :status_code, :attempts, :failed_at)
	ON CONFLICT (run_id, entity_id) DO NOTHING
`

// Name identifies the mirror in logs and metrics.
func (r *FailureRepo) Name() string {
	return "postgres"
}

// Add stores a failure record. A record already stored for the same run and
// id is left untouched.
func (r *FailureRepo) Add(ctx context.Context, rec *domain.FailureRecord) error {
	if _, err := r.db.NamedExecContext(ctx, insertFailure, rec); err != nil {
		return fmt.Errorf("failed to add failure record: %w", err)
	}
	return nil
}

// GetAll returns the stored failures for entity, oldest first. An empty runID
// returns every run.
func (r *FailureRepo) GetAll(
	ctx context.Context,
	entity domain.EntityType,
	runID string,
) ([]*domain.FailureRecord, error) {
	query := `
		SELECT entity_id, status_code, entity_type, attempts, run_id, failed_at
		FROM failures
		WHERE entity_type = $1 AND ($2 = '' OR run_id = $2)
		ORDER BY failed_at ASC, id ASC
	`

	var records []*domain.FailureRecord
	if err := r.db.SelectContext(ctx, &records, query, string(entity), runID); err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored failures for entity.
func (r *FailureRepo) Count(ctx context.Context, entity domain.EntityType) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failures WHERE entity_type = $1`, string(entity)); err != nil {
		return 0, fmt.Errorf("failed to count failure records: %w", err)
	}
	return count, nil
}
