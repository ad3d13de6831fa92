package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mhollis-dev/fieldops-api/internal/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS queued_mutations (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	kind             TEXT NOT NULL,
	payload          TEXT NOT NULL,
	synced           INTEGER NOT NULL DEFAULT 0,
	conflict_code    TEXT,
	conflict_message TEXT,
	created_at       TEXT NOT NULL
);
`

// Store is the device-local persistence for queued mutations. It survives
// process restarts so work captured offline is never lost before sync.
type Store struct {
	conn *sql.DB
}

// Entry is a persisted queue row. Seq is assigned by the store and strictly
// increases in enqueue order.
type Entry struct {
	Seq             int64
	Kind            models.MutationKind
	Payload         json.RawMessage
	Synced          bool
	ConflictCode    string
	ConflictMessage string
	CreatedAt       time.Time
}

// OpenStore opens (and if needed bootstraps) the local store at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping offline store: %w", err)
	}
	// Queue access is serialized through a single connection; sqlite does not
	// need more and this keeps seq assignment race free.
	conn.SetMaxOpenConns(1)
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bootstrap offline store: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Append persists a new mutation and returns its assigned seq.
func (s *Store) Append(ctx context.Context, kind models.MutationKind, payload json.RawMessage) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO queued_mutations (kind, payload, created_at) VALUES (?, ?, ?)`,
		string(kind), string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to append mutation: %w", err)
	}
	return res.LastInsertId()
}

// Unsynced returns pending mutations in seq order, excluding conflicted rows.
func (s *Store) Unsynced(ctx context.Context) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT seq, kind, payload, synced, COALESCE(conflict_code, ''), COALESCE(conflict_message, ''), created_at
		 FROM queued_mutations
		 WHERE synced = 0 AND conflict_code IS NULL
		 ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced mutations: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Conflicts returns mutations parked after a rejected replay.
func (s *Store) Conflicts(ctx context.Context) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT seq, kind, payload, synced, COALESCE(conflict_code, ''), COALESCE(conflict_message, ''), created_at
		 FROM queued_mutations
		 WHERE conflict_code IS NOT NULL
		 ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// MarkSynced flags a mutation as accepted by the server.
func (s *Store) MarkSynced(ctx context.Context, seq int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE queued_mutations SET synced = 1 WHERE seq = ? AND synced = 0`, seq)
	if err != nil {
		return fmt.Errorf("failed to mark mutation synced: %w", err)
	}
	return nil
}

// MarkConflict parks a mutation with the server's rejection.
func (s *Store) MarkConflict(ctx context.Context, seq int64, code, message string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE queued_mutations SET conflict_code = ?, conflict_message = ? WHERE seq = ? AND synced = 0`,
		code, message, seq)
	if err != nil {
		return fmt.Errorf("failed to mark mutation conflicted: %w", err)
	}
	return nil
}

// Delete removes an unsynced mutation. Synced rows are immutable history.
func (s *Store) Delete(ctx context.Context, seq int64) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM queued_mutations WHERE seq = ? AND synced = 0`, seq)
	if err != nil {
		return false, fmt.Errorf("failed to delete mutation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			entry   Entry
			kind    string
			payload string
			synced  int
			created string
		)
		if err := rows.Scan(&entry.Seq, &kind, &payload, &synced, &entry.ConflictCode, &entry.ConflictMessage, &created); err != nil {
			return nil, err
		}
		entry.Kind = models.MutationKind(kind)
		entry.Payload = json.RawMessage(payload)
		entry.Synced = synced == 1
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			entry.CreatedAt = ts
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
