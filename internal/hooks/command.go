package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/ragrelay/internal/config"
)

const defaultCommandTimeout = 5 * time.Second

// CommandHandler returns a Handler that runs command through sh -c with
// the JSON payload on stdin. timeout <= 0 uses a 5s default.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.WaitDelay = time.Second
		cmd.Env = append(cmd.Environ(), "RAGRELAY_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", command, err)
		}
		return nil
	}
}

// RegisterCommands wires every configured shell hook into m. Returns the
// number of handlers registered.
func (m *Manager) RegisterCommands(cfg config.HooksConfig) int {
	byEvent := map[string][]config.HookEntry{
		EventMessageReceived: cfg.MessageReceived,
		EventReplySent:       cfg.ReplySent,
		EventSessionCreated:  cfg.SessionCreated,
		EventSessionCleared:  cfg.SessionCleared,
		EventGatewayStart:    cfg.GatewayStart,
		EventGatewayStop:     cfg.GatewayStop,
	}

	n := 0
	for _, event := range AllEvents {
		for i, entry := range byEvent[event] {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			name := fmt.Sprintf("command:%s:%d", event, i)
			m.On(event, name, CommandHandler(entry.Command, time.Duration(entry.Timeout)*time.Millisecond))
			n++
		}
	}
	return n
}
