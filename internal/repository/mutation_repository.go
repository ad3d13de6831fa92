package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

const mutationColumns = `id, device_id, seq, kind, payload, actor_id, synced,
       conflict_code, conflict_message, created_at, synced_at`

// MutationRepository persists device mutation queues on the server side.
// (device_id, seq) is UNIQUE, so re-uploading a batch after a dropped
// connection is harmless.
type MutationRepository struct {
	db *sqlx.DB
}

// NewMutationRepository constructs the repository.
func NewMutationRepository(db *sqlx.DB) *MutationRepository {
	return &MutationRepository{db: db}
}

// Upsert stores an uploaded mutation, ignoring entries already received.
// Returns true when the row was newly inserted.
func (r *MutationRepository) Upsert(ctx context.Context, mutation *models.PendingMutation) (bool, error) {
	if mutation.ID == "" {
		mutation.ID = uuid.NewString()
	}
	if mutation.CreatedAt.IsZero() {
		mutation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pending_mutations
	(id, device_id, seq, kind, payload, actor_id, synced, conflict_code, conflict_message, created_at, synced_at)
	VALUES (:id, :device_id, :seq, :kind, :payload, :actor_id, :synced, :conflict_code, :conflict_message, :created_at, :synced_at)
	ON CONFLICT (device_id, seq) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, mutation)
	if err != nil {
		return false, fmt.Errorf("upsert mutation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check mutation upsert rows: %w", err)
	}
	return rows > 0, nil
}

// ListUnsynced returns the device's unsynced, unconflicted mutations in
// sequence order, the exact order drain replays them in.
func (r *MutationRepository) ListUnsynced(ctx context.Context, deviceID string) ([]models.PendingMutation, error) {
	query := fmt.Sprintf(`SELECT %s FROM pending_mutations
		WHERE device_id = $1 AND synced = FALSE AND conflict_code IS NULL
		ORDER BY seq ASC`, mutationColumns)
	var mutations []models.PendingMutation
	if err := r.db.SelectContext(ctx, &mutations, query, deviceID); err != nil {
		return nil, fmt.Errorf("list unsynced mutations: %w", err)
	}
	return mutations, nil
}

// ListConflicts returns parked mutations awaiting manual resolution.
func (r *MutationRepository) ListConflicts(ctx context.Context, deviceID string) ([]models.PendingMutation, error) {
	query := fmt.Sprintf(`SELECT %s FROM pending_mutations
		WHERE device_id = $1 AND conflict_code IS NOT NULL
		ORDER BY seq ASC`, mutationColumns)
	var mutations []models.PendingMutation
	if err := r.db.SelectContext(ctx, &mutations, query, deviceID); err != nil {
		return nil, fmt.Errorf("list conflicted mutations: %w", err)
	}
	return mutations, nil
}

// MarkSynced flags a replayed mutation as committed. The synced = FALSE guard
// keeps a concurrent double drain from applying twice.
func (r *MutationRepository) MarkSynced(ctx context.Context, id string) error {
	const query = `UPDATE pending_mutations
		SET synced = TRUE, synced_at = $2, conflict_code = NULL, conflict_message = NULL
		WHERE id = $1 AND synced = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark mutation synced: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check mark synced rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkConflict parks a mutation that failed replay validation.
func (r *MutationRepository) MarkConflict(ctx context.Context, id, code, message string) error {
	const query = `UPDATE pending_mutations
		SET conflict_code = $2, conflict_message = $3
		WHERE id = $1 AND synced = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, code, message)
	if err != nil {
		return fmt.Errorf("mark mutation conflict: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check mark conflict rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUnsynced withdraws a queued-but-unsynced mutation. Synced mutations
// can only be reversed by a compensating action, never withdrawn.
func (r *MutationRepository) DeleteUnsynced(ctx context.Context, deviceID string, seq int64) error {
	const query = `DELETE FROM pending_mutations
		WHERE device_id = $1 AND seq = $2 AND synced = FALSE`
	result, err := r.db.ExecContext(ctx, query, deviceID, seq)
	if err != nil {
		return fmt.Errorf("delete unsynced mutation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete unsynced rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
