package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/ragrelay/internal/gateway"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/spf13/cobra"
)

func newGatewayCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the ragrelay webhook gateway",
	}

	cmd.AddCommand(newGatewayRunCmd(g))
	return cmd
}

func newGatewayRunCmd(g *globalFlags) *cobra.Command {
	var (
		port  int
		bind  string
		async bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the webhook gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if cmd.Flags().Changed("async") {
				cfg.Gateway.Async = async
			}

			if err := validateConfig(&cfg); err != nil {
				return err
			}

			level := cfg.Logging.Level
			if g.logLevel != "" {
				level = g.logLevel
			}
			runLog, logCloser, err := logging.Open(logging.Options{
				Level: level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer logCloser.Close()

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			r, err := newRelay(cfg, paths, runLog)
			if err != nil {
				return err
			}
			defer r.Close()

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := r.store.Ping(pingCtx); err != nil {
				runLog.Warn().Err(err).Msg("session store unreachable; messages will get the retry reply until it recovers")
			}
			cancel()

			if r.sqlite != nil {
				go sweepLoop(ctx, r.sqlite, sweepInterval(cfg.Session.TTL()), runLog.Sub("store"))
			}

			runLog.Info().
				Str("backend", cfg.Backend.BaseURL).
				Str("chat", cfg.Backend.ChatID).
				Str("bot", cfg.Channel.BotWxid).
				Str("store", cfg.Session.Store).
				Dur("ttl", cfg.Session.TTL()).
				Msg("relay configured")

			srv := gateway.New(cfg.Gateway, r.router, r.dir, runLog, gateway.WithHooks(r.hooks))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().BoolVar(&async, "async", false, "acknowledge webhooks before routing them")

	return cmd
}
