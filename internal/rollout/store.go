// Package rollout implements the persistent, ordered event log every
// session is recorded into. Two logical tables — rollouts (one row per
// session) and rollout_items (one row per recorded RolloutItem) — mirror
// the spec's two-object-store IndexedDB model onto SQL, with a compound
// [rollout_id, sequence] index standing in for IndexedDB's compound key.
package rollout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a sqlite database holding rollouts and their items.
type Store struct {
	db *sql.DB
}

// Open connects to (and migrates) a sqlite database at path. Use
// ":memory:" for an ephemeral, process-local store.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path + "?_foreign_keys=ON"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}
	db.SetMaxOpenConns(1) // single-writer, matches the agent's cooperative concurrency model

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS rollouts (
	id              TEXT PRIMARY KEY,
	model           TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	expires_at      TEXT,
	has_user_event  INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS rollout_items (
	rollout_id  TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (rollout_id, sequence),
	FOREIGN KEY (rollout_id) REFERENCES rollouts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_rollout_items_rollout_seq ON rollout_items(rollout_id, sequence);
CREATE INDEX IF NOT EXISTS idx_rollouts_updated_at ON rollouts(updated_at);
CREATE INDEX IF NOT EXISTS idx_rollouts_expires_at ON rollouts(expires_at);
`)
	return storageErr("migrate", err)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRollout inserts the rollouts row for id if one doesn't already
// exist, so opening a session with a previously-used id resumes it rather
// than failing on the primary key. expiresAt is the rollout's fixed expiry,
// stored once at creation; nil means the rollout is permanent and
// DeleteExpired must never select it.
func (s *Store) CreateRollout(ctx context.Context, id, model string, expiresAt *time.Time, now time.Time) error {
	var expiresAtStr sql.NullString
	if expiresAt != nil {
		expiresAtStr = sql.NullString{String: expiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rollouts (id, model, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		id, model, now.UTC().Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano), expiresAtStr,
	)
	return storageErr(fmt.Sprintf("create rollout %s", id), err)
}

// nextSequence returns the next free sequence number for rolloutID.
func (s *Store) nextSequence(ctx context.Context, tx *sql.Tx, rolloutID string) (int64, error) {
	var max sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(sequence) FROM rollout_items WHERE rollout_id = ?`, rolloutID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64 + 1, nil
}

// AppendItem inserts one item at the next sequence slot for rolloutID and
// bumps the rollout's updated_at, all within one transaction so sequence
// assignment stays gap-free under the single-writer connection pool.
// isUserEvent marks this item as (or containing) a user-authored message;
// once set on a rollout it is never cleared, so ListConversationsAfter can
// filter out rollouts that never received real user input.
func (s *Store) AppendItem(ctx context.Context, rolloutID, kind string, payload []byte, isUserEvent bool, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	seq, err := s.nextSequence(ctx, tx, rolloutID)
	if err != nil {
		return 0, storageErr("next sequence", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rollout_items (rollout_id, sequence, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		rolloutID, seq, kind, string(payload), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, storageErr(fmt.Sprintf("append item to %s", rolloutID), err)
	}

	if isUserEvent {
		_, err = tx.ExecContext(ctx, `UPDATE rollouts SET updated_at = ?, has_user_event = 1 WHERE id = ?`, now.UTC().Format(time.RFC3339Nano), rolloutID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE rollouts SET updated_at = ? WHERE id = ?`, now.UTC().Format(time.RFC3339Nano), rolloutID)
	}
	if err != nil {
		return 0, storageErr("touch rollout", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit", err)
	}
	return seq, nil
}

// storedItem is one row scanned back out of rollout_items.
type storedItem struct {
	RolloutID string
	Sequence  int64
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}

// ListItems returns every item for rolloutID in sequence order.
func (s *Store) ListItems(ctx context.Context, rolloutID string) ([]storedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rollout_id, sequence, kind, payload, created_at FROM rollout_items WHERE rollout_id = ? ORDER BY sequence ASC`,
		rolloutID,
	)
	if err != nil {
		return nil, storageErr("list items", err)
	}
	defer rows.Close()
	items, err := scanItems(rows)
	return items, storageErr("list items", err)
}

func scanItems(rows *sql.Rows) ([]storedItem, error) {
	var out []storedItem
	for rows.Next() {
		var it storedItem
		var createdAt string
		var payload string
		if err := rows.Scan(&it.RolloutID, &it.Sequence, &it.Kind, &payload, &createdAt); err != nil {
			return nil, err
		}
		it.Payload = []byte(payload)
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		it.CreatedAt = t
		out = append(out, it)
	}
	return out, rows.Err()
}

// rolloutSummary is one row of rollouts, used by ListConversations.
type rolloutSummary struct {
	ID        string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListConversationsAfter scans at most maxScan rollouts that have at least
// one user event, ordered by (updated_at DESC, id DESC), starting strictly
// after the given cursor position, and returns at most limit of them.
// Whether a rollout has a SessionMeta item is not checked.
// reachedCap reports whether the maxScan bound was hit before limit
// matching rows were found, so the caller can tell "no more conversations"
// from "stopped scanning early".
func (s *Store) ListConversationsAfter(ctx context.Context, afterUpdatedAt time.Time, afterID string, limit, maxScan int) (out []rolloutSummary, reachedCap bool, err error) {
	query := `SELECT id, model, created_at, updated_at FROM rollouts WHERE has_user_event = 1`
	args := []any{}
	if !afterUpdatedAt.IsZero() {
		query += ` AND ((updated_at < ?) OR (updated_at = ? AND id < ?))`
		ts := afterUpdatedAt.UTC().Format(time.RFC3339Nano)
		args = append(args, ts, ts, afterID)
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, maxScan)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, storageErr("list conversations", err)
	}
	defer rows.Close()

	scanned := 0
	for rows.Next() {
		scanned++
		var r rolloutSummary
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Model, &createdAt, &updatedAt); err != nil {
			return nil, false, err
		}
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, false, err
		}
		r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, false, err
		}
		if len(out) < limit {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, scanned >= maxScan && len(out) < limit, nil
}

// DeleteExpired removes every rollout (and, via ON DELETE CASCADE, its
// items) whose stored expires_at is set and has passed now. Rollouts with
// no expires_at (permanent) are never selected, regardless of how stale
// their updated_at is. Returns the number of rollouts deleted.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rollouts WHERE expires_at IS NOT NULL AND expires_at < ?`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, storageErr("delete expired", err)
	}
	n, err := res.RowsAffected()
	return n, storageErr("delete expired", err)
}
