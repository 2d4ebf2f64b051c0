package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// SQLiteStore keeps session bindings in the session_bindings table.
// Expired rows are invisible to reads and removed lazily on access or by
// Sweep.
type SQLiteStore struct {
	db  *DB
	now func() time.Time
}

// NewSQLiteStore creates a binding store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Touch returns the live handle for key and pushes its expiry to now+ttl.
func (s *SQLiteStore) Touch(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	now := s.nowMillis()

	var handle string
	err := s.db.sql.QueryRowContext(ctx,
		`UPDATE session_bindings SET expires_at = ?
		 WHERE key = ? AND expires_at > ?
		 RETURNING handle`,
		now+ttl.Milliseconds(), key, now,
	).Scan(&handle)
	if err == nil {
		return handle, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("touch %q: %w", key, err)
	}

	if _, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM session_bindings WHERE key = ? AND expires_at <= ?`, key, now,
	); err != nil {
		s.db.log.Warn().Err(err).Str("key", key).Msg("failed to drop expired binding")
	}
	return "", false, nil
}

// Set binds key to handle with a fresh expiry, replacing any previous row.
func (s *SQLiteStore) Set(ctx context.Context, key, handle string, ttl time.Duration) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO session_bindings (key, handle, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
			handle = excluded.handle,
			expires_at = excluded.expires_at,
			created_at = datetime('now')`,
		key, handle, s.nowMillis()+ttl.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key and reports whether it held a live binding.
func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	var expiresAt int64
	err := s.db.sql.QueryRowContext(ctx,
		`DELETE FROM session_bindings WHERE key = ? RETURNING expires_at`, key,
	).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return expiresAt > s.nowMillis(), nil
}

// DeletePrefix removes all rows whose key starts with prefix, batch rows
// per statement.
func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := s.db.sql.ExecContext(ctx,
			`DELETE FROM session_bindings WHERE key IN (
				SELECT key FROM session_bindings WHERE substr(key, 1, ?) = ? LIMIT ?
			)`,
			utf8.RuneCountInString(prefix), prefix, batch,
		)
		if err != nil {
			return total, fmt.Errorf("delete prefix %q: %w", prefix, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(n)
		if n < int64(batch) {
			return total, nil
		}
	}
}

// Sweep deletes every expired row and returns how many were removed.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM session_bindings WHERE expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.db.log.Debug().Int64("removed", n).Msg("expired bindings swept")
	}
	return int(n), nil
}

// Count returns the number of live bindings whose key starts with prefix.
func (s *SQLiteStore) Count(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_bindings WHERE substr(key, 1, ?) = ? AND expires_at > ?`,
		utf8.RuneCountInString(prefix), prefix, s.nowMillis(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", prefix, err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.sql.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
