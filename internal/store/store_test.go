package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/soyeahso/ragrelay/internal/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ sessions.Store = (*SQLiteStore)(nil)
	_ sessions.Store = (*RedisStore)(nil)
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// testClock is a settable time source for the SQLite store.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// storeHarness gives the contract tests a store plus a way to move time.
type storeHarness struct {
	store   sessions.Store
	advance func(time.Duration)
}

func sqliteHarness(t *testing.T) storeHarness {
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	s := NewSQLiteStore(testDB(t))
	s.now = clock.Now
	return storeHarness{store: s, advance: clock.Advance}
}

func redisHarness(t *testing.T) storeHarness {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{Addr: mr.Addr()}, logging.New(nil, "silent"))
	t.Cleanup(func() { s.Close() })
	return storeHarness{store: s, advance: mr.FastForward}
}

func forEachStore(t *testing.T, fn func(t *testing.T, h storeHarness)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, sqliteHarness(t)) })
	t.Run("redis", func(t *testing.T) { fn(t, redisHarness(t)) })
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	require.NotNil(t, db)

	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), v)
}

func TestOpen_File(t *testing.T) {
	path := t.TempDir() + "/nested/ragrelay.db"
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)

	// Reopening an existing file keeps the recorded schema.
	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), v)
}

func TestMigrate_Rerun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.migrate(ctx))

	var count int
	require.NoError(t, db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	bad := migration{
		Version: latestVersion() + 1,
		Name:    "broken",
		SQL:     "CREATE TABLE half_done (id INTEGER); SELECT * FROM no_such_table;",
	}
	err := db.apply(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), v)

	var n int
	require.NoError(t, db.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='half_done'").Scan(&n))
	assert.Zero(t, n)
}

func TestSchema_BindingsTableExists(t *testing.T) {
	db := testDB(t)

	var name string
	err := db.sql.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='session_bindings'",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "session_bindings", name)
}

// --- Store contract ---

func TestStore_SetTouch(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()

		_, ok, err := h.store.Touch(ctx, "session:private:a", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.store.Set(ctx, "session:private:a", "sess-1", time.Minute))

		handle, ok, err := h.store.Touch(ctx, "session:private:a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "sess-1", handle)
	})
}

func TestStore_SetReplaces(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		require.NoError(t, h.store.Set(ctx, "k", "old", time.Minute))
		require.NoError(t, h.store.Set(ctx, "k", "new", time.Minute))

		handle, ok, err := h.store.Touch(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "new", handle)
	})
}

func TestStore_Expiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		require.NoError(t, h.store.Set(ctx, "k", "sess", time.Minute))

		h.advance(61 * time.Second)
		_, ok, err := h.store.Touch(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_TouchSlidesExpiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		require.NoError(t, h.store.Set(ctx, "k", "sess", time.Minute))

		for i := 0; i < 3; i++ {
			h.advance(45 * time.Second)
			_, ok, err := h.store.Touch(ctx, "k", time.Minute)
			require.NoError(t, err)
			require.True(t, ok, "round %d", i)
		}

		h.advance(2 * time.Minute)
		_, ok, err := h.store.Touch(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		require.NoError(t, h.store.Set(ctx, "k", "sess", time.Minute))

		existed, err := h.store.Delete(ctx, "k")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = h.store.Delete(ctx, "k")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestStore_DeleteExpiredReportsMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		require.NoError(t, h.store.Set(ctx, "k", "sess", time.Minute))
		h.advance(2 * time.Minute)

		existed, err := h.store.Delete(ctx, "k")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestStore_DeletePrefix(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		for i := 0; i < 25; i++ {
			require.NoError(t, h.store.Set(ctx, fmt.Sprintf("session:private:wxid_%02d", i), "h", time.Hour))
		}
		require.NoError(t, h.store.Set(ctx, "session:group:wxid_g", "h", time.Hour))
		require.NoError(t, h.store.Set(ctx, "sessionx:private:keep", "h", time.Hour))
		require.NoError(t, h.store.Set(ctx, "other:private:keep", "h", time.Hour))

		n, err := h.store.DeletePrefix(ctx, "session:", 4)
		require.NoError(t, err)
		assert.Equal(t, 26, n)

		for _, k := range []string{"sessionx:private:keep", "other:private:keep"} {
			_, ok, err := h.store.Touch(ctx, k, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok, k)
		}
		_, ok, err := h.store.Touch(ctx, "session:group:wxid_g", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_DeletePrefixSingleKeyBatches(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		for i := 0; i < 40; i++ {
			require.NoError(t, h.store.Set(ctx, fmt.Sprintf("session:group:wxid_%02d", i), "h", time.Hour))
		}

		n, err := h.store.DeletePrefix(ctx, "session:", 1)
		require.NoError(t, err)
		assert.Equal(t, 40, n)

		n, err = h.store.DeletePrefix(ctx, "session:", 1)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStore_DeletePrefixGlobCharacters(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		require.NoError(t, h.store.Set(ctx, "a*b:1", "h", time.Hour))
		require.NoError(t, h.store.Set(ctx, "axb:1", "h", time.Hour))

		n, err := h.store.DeletePrefix(ctx, "a*b:", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, ok, err := h.store.Touch(ctx, "axb:1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStore_CountAndUnicodePrefix(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		counter, ok := h.store.(interface {
			Count(ctx context.Context, prefix string) (int, error)
		})
		require.True(t, ok)

		require.NoError(t, h.store.Set(ctx, "会话:private:a", "h", time.Hour))
		require.NoError(t, h.store.Set(ctx, "会话:group:b", "h", time.Hour))
		require.NoError(t, h.store.Set(ctx, "session:private:c", "h", time.Hour))

		n, err := counter.Count(ctx, "会话:")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = h.store.DeletePrefix(ctx, "会话:", 10)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = counter.Count(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_Ping(t *testing.T) {
	forEachStore(t, func(t *testing.T, h storeHarness) {
		assert.NoError(t, h.store.Ping(context.Background()))
	})
}

// --- SQLite specifics ---

func TestSQLiteStore_TouchDropsExpiredRow(t *testing.T) {
	h := sqliteHarness(t)
	s := h.store.(*SQLiteStore)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "sess", time.Minute))
	h.advance(2 * time.Minute)
	_, ok, err := s.Touch(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	var rows int
	require.NoError(t, s.db.sql.QueryRow("SELECT COUNT(*) FROM session_bindings").Scan(&rows))
	assert.Equal(t, 0, rows)
}

func TestSQLiteStore_SweepAndCount(t *testing.T) {
	h := sqliteHarness(t)
	s := h.store.(*SQLiteStore)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "session:private:short", "h", time.Minute))
	require.NoError(t, s.Set(ctx, "session:private:long", "h", time.Hour))
	require.NoError(t, s.Set(ctx, "session:group:long", "h", time.Hour))

	n, err := s.Count(ctx, "session:")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	h.advance(5 * time.Minute)
	n, err = s.Count(ctx, "session:private:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestSQLiteStore_ContextCancelled(t *testing.T) {
	s := NewSQLiteStore(testDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.DeletePrefix(ctx, "session:", 10)
	assert.Error(t, err)
}

// --- Redis specifics ---

func TestRedisStore_TTLIsSet(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{Addr: mr.Addr()}, logging.New(nil, "silent"))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "session:private:a", "sess", 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("session:private:a"))

	_, ok, err := s.Touch(ctx, "session:private:a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("session:private:a"))
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{Addr: mr.Addr()}, logging.New(nil, "silent"))
	defer s.Close()
	mr.Close()

	ctx := context.Background()
	_, _, err := s.Touch(ctx, "k", time.Minute)
	assert.Error(t, err)
	assert.Error(t, s.Ping(ctx))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "session:", escapeGlob("session:"))
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapeGlob(`a*b?c[d]e\f`))
}
