package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/routing"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and clear session bindings",
	}

	cmd.AddCommand(newSessionClearCmd())
	cmd.AddCommand(newSessionClearAllCmd())
	return cmd
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <private|group> <participant>",
		Short: "Drop the binding for one conversation identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := domain.Scope(args[0])
			if !scope.Valid() {
				return fmt.Errorf("unknown scope %q (want private or group)", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := newRelay(cfg, paths, log)
			if err != nil {
				return err
			}
			defer r.Close()

			key := routing.IdentityKey(r.router.KeyPrefix(), scope, args[1])
			existed, err := r.dir.Clear(context.Background(), key)
			if err != nil {
				return err
			}
			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", key)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No session bound to %s\n", key)
			}
			return nil
		},
	}
}

func newSessionClearAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Drop every session binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := newRelay(cfg, paths, log)
			if err != nil {
				return err
			}
			defer r.Close()

			n, err := r.dir.ClearAllMatching(context.Background(), r.router.KeyPrefix()+":")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d session(s)\n", n)
			return nil
		},
	}
}
