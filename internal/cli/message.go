package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/routing"
	"github.com/soyeahso/ragrelay/internal/wechat"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Route messages without the webhook",
	}

	cmd.AddCommand(newMessageSendCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		from    string
		group   string
		payload string
		deliver bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Route a message through the session directory and print the reply",
		Long: "Route a message as if it had arrived on the webhook. The message is taken " +
			"from the arguments, or from a raw webhook payload with --payload (- for stdin). " +
			"With --relay the reply is also sent to the chat.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := validateConfig(&cfg); err != nil {
				return err
			}

			var evt domain.InboundEvent
			switch {
			case payload != "":
				evt, err = readPayload(cmd.InOrStdin(), payload)
				if err != nil {
					return err
				}
			case len(args) > 0:
				evt = cliEvent(strings.Join(args, " "), from, group, cfg.Channel.BotWxid)
			default:
				return fmt.Errorf("a message or --payload is required")
			}

			r, err := newRelay(cfg, paths, log)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var out routing.Outcome
			if deliver {
				out = r.router.HandleInbound(ctx, evt)
			} else {
				out = r.router.Route(ctx, evt)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printOutcome(cmd, out)
		},
	}

	cmd.Flags().StringVar(&from, "from", "cli", "sender wxid")
	cmd.Flags().StringVar(&group, "group", "", "group wxid; routes as a group message mentioning the bot")
	cmd.Flags().StringVar(&payload, "payload", "", "read a raw webhook payload from a file (- for stdin)")
	cmd.Flags().BoolVar(&deliver, "relay", false, "send the reply to the chat through the WeChat API")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the routing outcome as JSON")

	return cmd
}

// cliEvent builds an event for a message typed on the command line.
func cliEvent(text, from, group, bot string) domain.InboundEvent {
	evt := domain.InboundEvent{
		Text:           text,
		Scope:          domain.ScopePrivate,
		SenderID:       from,
		ConversationID: from,
		ReceivedAt:     time.Now(),
	}
	if group != "" {
		evt.Scope = domain.ScopeGroup
		evt.ConversationID = group
		if bot != "" {
			evt.Mentions = []string{bot}
		}
	}
	return evt
}

func readPayload(stdin io.Reader, path string) (domain.InboundEvent, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.InboundEvent{}, fmt.Errorf("reading payload: %w", err)
	}
	return wechat.ParseEvent(data)
}

func printOutcome(cmd *cobra.Command, out routing.Outcome) error {
	stderr := cmd.ErrOrStderr()
	switch {
	case out.Reply != nil && out.Reply.Content != "":
		fmt.Fprintln(cmd.OutOrStdout(), out.Reply.Content)
	case out.Message != "":
		fmt.Fprintln(stderr, out.Message)
	}

	meta := []string{"action=" + string(out.Action)}
	if out.Key != "" {
		meta = append(meta, "key="+out.Key)
	}
	if out.Reply != nil && out.Reply.SessionHandle != "" {
		meta = append(meta, "session="+out.Reply.SessionHandle)
	}
	if out.Reply != nil && out.Reply.IsError {
		meta = append(meta, "error=true")
	}
	if out.Dispatch != nil {
		meta = append(meta, fmt.Sprintf("relayed=%v", out.Dispatch.OK))
	}
	fmt.Fprintf(stderr, "\n[%s]\n", strings.Join(meta, " "))

	if out.Dispatch != nil && !out.Dispatch.OK {
		return fmt.Errorf("relay failed: %s", out.Dispatch.Error)
	}
	return nil
}
