package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/soyeahso/ragrelay/internal/version"
)

// SenderOptions configures a Sender.
type SenderOptions struct {
	APIBase        string
	Timeout        time.Duration // per send, default 10s
	MentionReplies bool
	HTTPClient     *http.Client
}

// Sender delivers text messages through the WeChat HTTP API. Each send is
// attempted once.
type Sender struct {
	apiBase  string
	timeout  time.Duration
	mentions bool
	client   *http.Client
	log      *logging.Logger
}

var _ domain.Dispatcher = (*Sender)(nil)

// NewSender creates a reply dispatcher.
func NewSender(opts SenderOptions, log *logging.Logger) *Sender {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		apiBase:  opts.APIBase,
		timeout:  timeout,
		mentions: opts.MentionReplies,
		client:   client,
		log:      log.Sub("wechat"),
	}
}

type sendText2Request struct {
	Type string        `json:"type"`
	Data sendText2Data `json:"data"`
}

type sendText2Data struct {
	Wxid       string `json:"wxid"`
	Msg        string `json:"msg"`
	Compatible string `json:"compatible"`
}

// MentionTag renders the inline tag that makes WeChat notify id.
func MentionTag(id string) string {
	return fmt.Sprintf("[@,wxid=%s,nick=,isAuto=true]", id)
}

// FormatMessage prefixes content with mention tags for each target.
func FormatMessage(content string, mentions []string) string {
	var b strings.Builder
	for _, id := range mentions {
		if id != "" {
			b.WriteString(MentionTag(id))
		}
	}
	if b.Len() == 0 {
		return content
	}
	b.WriteByte(' ')
	b.WriteString(content)
	return b.String()
}

// SendText posts a sendText2 request addressed to the conversation to.
func (s *Sender) SendText(ctx context.Context, to, content string, mentions []string) domain.DispatchResult {
	msg := content
	if s.mentions {
		msg = FormatMessage(content, mentions)
	}

	payload, err := json.Marshal(sendText2Request{
		Type: "sendText2",
		Data: sendText2Data{Wxid: to, Msg: msg, Compatible: "0"},
	})
	if err != nil {
		return s.fail(to, fmt.Errorf("failed to marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase, bytes.NewReader(payload))
	if err != nil {
		return s.fail(to, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return s.fail(to, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return s.fail(to, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.fail(to, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var result map[string]any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return s.fail(to, fmt.Errorf("failed to parse response: %w", err))
		}
	}

	s.log.Info().Str("to", to).Int("len", len(msg)).Msg("message sent")
	return domain.DispatchResult{OK: true, Response: result}
}

func (s *Sender) fail(to string, err error) domain.DispatchResult {
	s.log.Error().Err(err).Str("to", to).Msg("send failed")
	return domain.DispatchResult{Error: err.Error()}
}
