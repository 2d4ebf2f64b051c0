// Package sessions binds conversation identities to backend sessions.
//
// A Directory owns the key -> handle mapping. Bindings carry a sliding
// expiry: every successful lookup pushes the deadline out by the TTL.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/hooks"
	"github.com/soyeahso/ragrelay/internal/logging"
)

// Store persists bindings. Implementations must be safe for concurrent use.
type Store interface {
	// Touch returns the live handle for key and resets its expiry to ttl.
	Touch(ctx context.Context, key string, ttl time.Duration) (handle string, ok bool, err error)
	// Set binds key to handle, replacing any previous binding.
	Set(ctx context.Context, key, handle string, ttl time.Duration) error
	// Delete removes the binding and reports whether a live one existed.
	Delete(ctx context.Context, key string) (existed bool, err error)
	// DeletePrefix removes every binding whose key starts with prefix,
	// working through the keyspace batch keys at a time.
	DeletePrefix(ctx context.Context, prefix string, batch int) (deleted int, err error)
	Ping(ctx context.Context) error
	Close() error
}

// Creator opens remote sessions. backend.Client satisfies it.
type Creator interface {
	CreateSession(ctx context.Context, title string) (string, error)
}

// Options tunes a Directory. Zero values pick defaults.
type Options struct {
	TTL         time.Duration // default 1h
	TitleLength int           // runes of the seed kept in the title, default 8
	LockStripes int           // 0 leaves check-then-create unserialized
	ScanBatch   int           // keys per bulk delete round, default 100
	Hooks       *hooks.Manager
}

// Directory resolves identity keys to backend session handles.
type Directory struct {
	store    Store
	creator  Creator
	ttl      time.Duration
	titleLen int
	batch    int
	locks    *stripedLock
	hooks    *hooks.Manager
	log      *logging.Logger
}

// NewDirectory creates a Directory over store, creating sessions with creator.
func NewDirectory(store Store, creator Creator, opts Options, log *logging.Logger) *Directory {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.TitleLength <= 0 {
		opts.TitleLength = 8
	}
	if opts.ScanBatch <= 0 {
		opts.ScanBatch = 100
	}
	return &Directory{
		store:    store,
		creator:  creator,
		ttl:      opts.TTL,
		titleLen: opts.TitleLength,
		batch:    opts.ScanBatch,
		locks:    newStripedLock(opts.LockStripes),
		hooks:    opts.Hooks,
		log:      log.Sub("sessions"),
	}
}

// TTL returns the sliding expiry applied to bindings.
func (d *Directory) TTL() time.Duration { return d.ttl }

// GetOrCreate returns the handle bound to key, refreshing its expiry, or
// creates a backend session titled "{label} {titleSeed}" and binds it, with
// the seed truncated to the title length. created reports whether a new
// session was opened. Nothing is stored when creation fails.
func (d *Directory) GetOrCreate(ctx context.Context, key, label, titleSeed string) (handle string, created bool, err error) {
	unlock := d.locks.lock(key)
	defer unlock()

	handle, ok, err := d.store.Touch(ctx, key, d.ttl)
	if err != nil {
		return "", false, fmt.Errorf("session lookup %q: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	if ok {
		d.log.Debug().Str("key", key).Str("session", handle).Msg("session reused")
		return handle, false, nil
	}

	title := Title(titleSeed, d.titleLen)
	if label != "" {
		title = label + " " + title
	}
	handle, err = d.creator.CreateSession(ctx, title)
	if err != nil {
		if !errors.Is(err, domain.ErrBackendUnavailable) && !errors.Is(err, domain.ErrBackendDomain) {
			err = fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}
		d.log.Warn().Err(err).Str("key", key).Msg("session creation failed")
		return "", false, fmt.Errorf("creating session for %q: %w", key, err)
	}
	if handle == "" {
		return "", false, fmt.Errorf("creating session for %q: %w: empty handle", key, domain.ErrBackendDomain)
	}

	if err := d.store.Set(ctx, key, handle, d.ttl); err != nil {
		d.log.Error().Err(err).Str("key", key).Str("session", handle).Msg("failed to store binding")
		return "", false, fmt.Errorf("binding %q: %w: %w", key, domain.ErrStoreUnavailable, err)
	}

	d.log.Info().Str("key", key).Str("session", handle).Str("title", title).Msg("session created")
	d.hooks.EmitAsync(ctx, hooks.EventSessionCreated, map[string]any{
		"key":     key,
		"session": handle,
		"title":   title,
	})
	return handle, true, nil
}

// Clear removes the binding for key and reports whether a live one existed.
// The remote session itself is left alone.
func (d *Directory) Clear(ctx context.Context, key string) (bool, error) {
	existed, err := d.store.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("clearing %q: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	d.log.Info().Str("key", key).Bool("existed", existed).Msg("session cleared")
	if existed {
		d.hooks.EmitAsync(ctx, hooks.EventSessionCleared, map[string]any{"key": key})
	}
	return existed, nil
}

// ClearAllMatching removes every binding whose key starts with prefix and
// returns how many were deleted. An empty prefix is refused.
func (d *Directory) ClearAllMatching(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("clear all: empty key prefix")
	}
	n, err := d.store.DeletePrefix(ctx, prefix, d.batch)
	if err != nil {
		return n, fmt.Errorf("clearing %q*: %w: %w", prefix, domain.ErrStoreUnavailable, err)
	}
	d.log.Info().Str("prefix", prefix).Int("deleted", n).Msg("sessions cleared")
	d.hooks.EmitAsync(ctx, hooks.EventSessionCleared, map[string]any{"prefix": prefix, "deleted": n})
	return n, nil
}

// Ping checks that the backing store is reachable.
func (d *Directory) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

// Title truncates seed to at most n runes.
func Title(seed string, n int) string {
	if n <= 0 {
		return seed
	}
	i := 0
	for pos := range seed {
		if i == n {
			return seed[:pos]
		}
		i++
	}
	return seed
}
