package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/ragrelay/internal/backend"
	"github.com/soyeahso/ragrelay/internal/config"
	"github.com/soyeahso/ragrelay/internal/hooks"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/soyeahso/ragrelay/internal/routing"
	"github.com/soyeahso/ragrelay/internal/sessions"
	"github.com/soyeahso/ragrelay/internal/store"
	"github.com/soyeahso/ragrelay/internal/wechat"
)

// sessionStore is a session store that can also count its bindings.
type sessionStore interface {
	sessions.Store
	Count(ctx context.Context, prefix string) (int, error)
}

// relay holds the services one ragrelay process wires together.
type relay struct {
	cfg    config.Config
	hooks  *hooks.Manager
	store  sessionStore
	sqlite *store.SQLiteStore // nil unless session.store is sqlite
	dir    *sessions.Directory
	router *routing.Router
}

// openStore opens the session store session.store selects.
func openStore(cfg config.Config, p config.Paths, log *logging.Logger) (sessionStore, *store.SQLiteStore, error) {
	switch cfg.Session.Store {
	case "redis":
		rs := store.NewRedisStore(store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		log.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("using Redis session store")
		return rs, nil, nil
	default:
		path := p.SQLitePath(cfg.SQLite)
		db, err := store.Open(path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		s := store.NewSQLiteStore(db)
		log.Info().Str("path", path).Msg("using SQLite session store")
		return s, s, nil
	}
}

// newRelay builds the store, backend client, session directory, reply
// sender and router from cfg.
func newRelay(cfg config.Config, p config.Paths, log *logging.Logger) (*relay, error) {
	st, sq, err := openStore(cfg, p, log)
	if err != nil {
		return nil, err
	}

	hm := hooks.NewManager(log)
	if n := hm.RegisterCommands(cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("shell hooks registered")
	}

	rag := backend.NewRAGFlowClient(backend.RAGFlowOptions{
		BaseURL:       cfg.Backend.BaseURL,
		APIKey:        cfg.Backend.APIKey,
		ChatID:        cfg.Backend.ChatID,
		CreateTimeout: cfg.Backend.CreateTimeout(),
		SendTimeout:   cfg.Backend.SendTimeout(),
	}, log)

	dir := sessions.NewDirectory(st, rag, sessions.Options{
		TTL:         cfg.Session.TTL(),
		TitleLength: cfg.Session.TitleLength,
		LockStripes: cfg.Session.LockStripes,
		ScanBatch:   cfg.Session.ScanBatch,
		Hooks:       hm,
	}, log)

	sender := wechat.NewSender(wechat.SenderOptions{
		APIBase:        cfg.Channel.APIBase,
		Timeout:        cfg.Channel.SendTimeout(),
		MentionReplies: cfg.Channel.MentionsEnabled(),
	}, log)

	router := routing.NewRouter(dir, rag, sender, routing.Options{
		BotWxid:         cfg.Channel.BotWxid,
		KeyPrefix:       cfg.Session.KeyPrefix,
		ClearCommand:    cfg.Commands.Clear,
		ClearAllCommand: cfg.Commands.ClearAll,
		Admins:          cfg.Commands.Admins,
		Replies: routing.Replies{
			Fallback:     cfg.Replies.Fallback,
			Retry:        cfg.Replies.Retry,
			Cleared:      cfg.Replies.Cleared,
			NotCleared:   cfg.Replies.NotCleared,
			ClearedAll:   cfg.Replies.ClearedAll,
			Unauthorized: cfg.Replies.Unauthorized,
		},
		PrivateLabel: cfg.Session.PrivateLabel,
		GroupLabel:   cfg.Session.GroupLabel,
		Hooks:        hm,
	}, log)

	return &relay{
		cfg:    cfg,
		hooks:  hm,
		store:  st,
		sqlite: sq,
		dir:    dir,
		router: router,
	}, nil
}

// Close releases the session store.
func (r *relay) Close() error {
	return r.store.Close()
}

// sweepInterval spaces SQLite expiry sweeps at half the TTL, at least a minute apart.
func sweepInterval(ttl time.Duration) time.Duration {
	if d := ttl / 2; d > time.Minute {
		return d
	}
	return time.Minute
}

// sweepLoop deletes expired SQLite rows until ctx is done. Redis expires
// keys itself.
func sweepLoop(ctx context.Context, s *store.SQLiteStore, every time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("deleted", n).Msg("expired bindings swept")
			}
		}
	}
}

// loadConfig reads the config file chosen by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", paths.Config, err)
	}
	return cfg, nil
}

// validateConfig logs every issue and fails if there were any.
func validateConfig(cfg *config.Config) error {
	issues := config.Validate(cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}
