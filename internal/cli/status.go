package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/soyeahso/ragrelay/internal/config"
	"github.com/soyeahso/ragrelay/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ragrelay status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)
			red := color.New(color.FgRed)
			gray := color.New(color.FgHiBlack)

			fmt.Fprintf(w, "ragrelay %s ", version.Resolved())
			gray.Fprintf(w, "(commit %s)\n\n", version.Commit)

			fmt.Fprintf(w, "Config:  %s\n", paths.Config)
			fmt.Fprintf(w, "Data:    %s\n", paths.Data)
			fmt.Fprintf(w, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(w)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				red.Fprintf(w, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(w, "Gateway: port=%d bind=%s async=%v admin=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Async, cfg.Gateway.Auth.Token != "")
			fmt.Fprintf(w, "Backend: %s chat=%s\n", cfg.Backend.BaseURL, cfg.Backend.ChatID)
			fmt.Fprintf(w, "WeChat:  %s bot=%s\n", cfg.Channel.APIBase, cfg.Channel.BotWxid)
			fmt.Fprintf(w, "Session: store=%s ttl=%s prefix=%s\n",
				cfg.Session.Store, cfg.Session.TTL(), cfg.Session.KeyPrefix)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				yellow.Fprintf(w, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(w, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			fmt.Fprintln(w)
			st, _, err := openStore(cfg, paths, log)
			if err != nil {
				red.Fprint(w, "Store:   ")
				fmt.Fprintf(w, "%v\n", err)
				return nil
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := st.Ping(ctx); err != nil {
				red.Fprint(w, "Store:   unreachable ")
				fmt.Fprintf(w, "(%v)\n", err)
				return nil
			}
			green.Fprint(w, "Store:   reachable")
			n, err := st.Count(ctx, cfg.Session.KeyPrefix+":")
			if err != nil {
				fmt.Fprintf(w, " (count failed: %v)\n", err)
				return nil
			}
			fmt.Fprintf(w, ", %d active binding(s)\n", n)
			return nil
		},
	}

	return cmd
}
