// Package gateway serves the WeChat webhook, the admin session routes and
// the health check.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/ragrelay/internal/config"
	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/hooks"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/soyeahso/ragrelay/internal/routing"
)

const (
	maxWebhookBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
	healthTimeout   = 3 * time.Second
)

// Inbound is the part of routing.Router the webhook drives.
type Inbound interface {
	HandleInbound(ctx context.Context, evt domain.InboundEvent) routing.Outcome
	// Addressed is false for events the router drops without side effects.
	Addressed(evt domain.InboundEvent) bool
	KeyPrefix() string
}

// Sessions is the part of sessions.Directory the admin and health routes use.
type Sessions interface {
	Clear(ctx context.Context, key string) (bool, error)
	ClearAllMatching(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

// Server is the ragrelay HTTP gateway.
type Server struct {
	cfg      config.GatewayConfig
	router   Inbound
	sessions Sessions
	limiter  *senderLimiter
	hooks    *hooks.Manager
	log      *logging.Logger

	// inflight tracks webhooks routed after an early acknowledgement.
	inflight sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a gateway server.
func New(cfg config.GatewayConfig, router Inbound, sessions Sessions, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		router:   router,
		sessions: sessions,
		limiter:  newSenderLimiter(cfg.RateLimit),
		log:      log.Sub("gateway"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/receive", s.handleReceive)
	mux.HandleFunc("DELETE /api/sessions/{scope}/{participant}", s.requireAdmin(s.handleClearSession))
	mux.HandleFunc("DELETE /api/sessions", s.requireAdmin(s.handleClearAll))
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("/", handleNotFound)
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start listens for webhook traffic. It blocks until ctx is cancelled or the
// listener fails, and waits for early-acknowledged webhooks before returning.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("async", s.cfg.Async).
		Bool("admin", s.cfg.Auth.Token != "").
		Bool("rateLimit", s.limiter != nil).
		Msg("gateway server ready")

	s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
		"addr": ln.Addr().String(),
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	err = srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	s.inflight.Wait()
	s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
	return nil
}

// Addr returns the bound listen address, or an empty string before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
