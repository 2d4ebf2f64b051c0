package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/soyeahso/ragrelay/internal/version"
)

// RAGFlowOptions configures a RAGFlowClient.
type RAGFlowOptions struct {
	BaseURL       string // e.g. http://host:1180/api/v1
	APIKey        string
	ChatID        string
	CreateTimeout time.Duration
	SendTimeout   time.Duration
	HTTPClient    *http.Client
}

// RAGFlowClient is an HTTP client for the RAGFlow chat assistant API.
type RAGFlowClient struct {
	baseURL       string
	apiKey        string
	chatID        string
	createTimeout time.Duration
	sendTimeout   time.Duration
	client        *http.Client
	log           *logging.Logger
}

// NewRAGFlowClient creates a RAGFlow client.
func NewRAGFlowClient(opts RAGFlowOptions, log *logging.Logger) *RAGFlowClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	createTimeout := opts.CreateTimeout
	if createTimeout <= 0 {
		createTimeout = 10 * time.Second
	}
	sendTimeout := opts.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 60 * time.Second
	}
	return &RAGFlowClient{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        opts.APIKey,
		chatID:        opts.ChatID,
		createTimeout: createTimeout,
		sendTimeout:   sendTimeout,
		client:        client,
		log:           log.Sub("backend"),
	}
}

// envelope is the common RAGFlow response shape.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateSession opens a session named title under the configured chat.
func (c *RAGFlowClient) CreateSession(ctx context.Context, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	env, err := c.post(ctx, "create_session", c.chatPath("sessions"), map[string]any{"name": title})
	if err != nil {
		c.log.Error().Err(err).Str("title", title).Msg("create session failed")
		return "", err
	}

	var data struct {
		ID string `json:"id"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", &APIError{Op: "create_session", Kind: KindMalformed, Message: "unexpected data payload", Err: err}
		}
	}
	if data.ID == "" {
		return "", &APIError{Op: "create_session", Kind: KindMalformed, Message: "response carries no session id"}
	}

	c.log.Info().Str("session", data.ID).Str("title", title).Msg("backend session created")
	return data.ID, nil
}

// Send asks question inside the session identified by handle.
func (c *RAGFlowClient) Send(ctx context.Context, question, handle string) Answer {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	start := time.Now()
	env, err := c.post(ctx, "completion", c.chatPath("completions"), map[string]any{
		"question":   question,
		"session_id": handle,
		"stream":     false,
	})
	if err != nil {
		c.log.Error().Err(err).Str("session", handle).Msg("completion failed")
		return ErrorAnswer(err)
	}

	var data struct {
		Answer string `json:"answer"`
	}
	if !isObject(env.Data) || json.Unmarshal(env.Data, &data) != nil {
		// code 0 without an answer object is reported like a backend error.
		c.log.Error().Str("session", handle).RawJSON("data", rawOrNull(env.Data)).Msg("completion payload is not an object")
		return ErrorAnswer(&APIError{Op: "completion", Kind: KindDomain, Message: env.Message})
	}

	c.log.Debug().
		Str("session", handle).
		Dur("duration", time.Since(start)).
		Int("answerLen", len(data.Answer)).
		Msg("completion done")
	return Answer{Content: strings.TrimSpace(data.Answer)}
}

func (c *RAGFlowClient) chatPath(leaf string) string {
	return c.baseURL + "/chats/" + url.PathEscape(c.chatID) + "/" + leaf
}

// post sends a JSON request and decodes the envelope. Any failure,
// including a non-zero result code, is returned as *APIError.
func (c *RAGFlowClient) post(ctx context.Context, op, endpoint string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{Op: op, Kind: KindTransport, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &APIError{Op: op, Kind: KindTimeout, Message: "request timed out", Err: err}
		}
		return nil, &APIError{Op: op, Kind: KindTransport, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &APIError{Op: op, Kind: KindTimeout, Message: "response timed out", Err: err}
		}
		return nil, &APIError{Op: op, Kind: KindTransport, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, Kind: KindHTTP, Status: resp.StatusCode}
		var errBody struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errBody) == nil {
			apiErr.Message = errBody.Message
		}
		return nil, apiErr
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &APIError{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Message: "response is not JSON", Err: err}
	}
	if env.Code != 0 {
		return nil, &APIError{Op: op, Kind: KindDomain, Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return &env, nil
}

// isObject reports whether raw is a JSON object.
func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func rawOrNull(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null")
	}
	return raw
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
