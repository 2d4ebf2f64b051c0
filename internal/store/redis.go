package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soyeahso/ragrelay/internal/logging"
)

// RedisOptions locates a Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps session bindings as plain string keys with native
// per-key expiry.
type RedisStore struct {
	client *redis.Client
	log    *logging.Logger
}

// NewRedisStore connects to Redis. The connection is verified lazily; call
// Ping to check it up front.
func NewRedisStore(opts RedisOptions, log *logging.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreFromClient(client, log)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, log *logging.Logger) *RedisStore {
	return &RedisStore{client: client, log: log.Sub("store")}
}

// Touch reads key and resets its TTL in one MULTI/EXEC round trip.
func (r *RedisStore) Touch(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	var get *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, key)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("touch %q: %w", key, err)
	}
	return get.Val(), true, nil
}

// Set stores handle under key with ttl.
func (r *RedisStore) Set(ctx context.Context, key, handle string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, handle, ttl).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Expired keys are already gone, so existed means live.
func (r *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return n > 0, nil
}

// maxScanPasses bounds DeletePrefix when writers keep adding matching keys.
const maxScanPasses = 32

// DeletePrefix walks the keyspace with SCAN and deletes matches in batches.
// Deleting during a walk may make the cursor skip keys on some servers, so
// passes repeat until one finds nothing left to delete.
func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	pattern := escapeGlob(prefix) + "*"

	total := 0
	for pass := 0; pass < maxScanPasses; pass++ {
		n, err := r.deletePass(ctx, pattern, batch)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	r.log.Debug().Str("pattern", pattern).Int("deleted", total).Msg("prefix cleared")
	return total, nil
}

// deletePass runs one full SCAN over pattern, deleting every batch it fills.
func (r *RedisStore) deletePass(ctx context.Context, pattern string, batch int) (int, error) {
	deleted := 0
	pending := make([]string, 0, batch)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, pending...).Result()
		if err != nil {
			return fmt.Errorf("delete %q: %w", pattern, err)
		}
		deleted += int(n)
		pending = pending[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, int64(batch)).Iterator()
	for iter.Next(ctx) {
		pending = append(pending, iter.Val())
		if len(pending) >= batch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan %q: %w", pattern, err)
	}
	return deleted, flush()
}

// Count returns the number of bindings whose key starts with prefix.
func (r *RedisStore) Count(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(prefix) + "*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	n := 0
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("scan %q: %w", pattern, err)
	}
	return n, nil
}

// Ping checks the server connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (r *RedisStore) Close() error {
	r.log.Info().Msg("closing redis client")
	return r.client.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
