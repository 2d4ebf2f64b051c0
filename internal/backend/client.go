// Package backend talks to the retrieval-augmented chat assistant that
// answers relayed questions. A backend session carries the conversation
// history on the remote side; ragrelay only holds its opaque handle.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/ragrelay/internal/domain"
)

// Answer is the outcome of a Send call. Failures are folded into Content
// with IsError set, so callers always have something to relay.
type Answer struct {
	Content string `json:"content"`
	IsError bool   `json:"error"`
}

// Client is the interface the session directory and router depend on.
type Client interface {
	// CreateSession opens a new remote session and returns its handle.
	CreateSession(ctx context.Context, title string) (string, error)

	// Send asks a question inside an existing session. It never fails;
	// transport and backend errors come back as an error Answer.
	Send(ctx context.Context, question, handle string) Answer
}

// Failure kinds carried by APIError.
const (
	KindTimeout   = "timeout"
	KindTransport = "transport"
	KindHTTP      = "http"
	KindDomain    = "domain"
	KindMalformed = "malformed"
)

// APIError is returned when a backend call fails.
type APIError struct {
	Op      string // "create_session" | "completion"
	Kind    string
	Status  int // HTTP status, 0 when no response arrived
	Code    int // backend result code, meaningful for KindDomain
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Status > 0 && e.Kind == KindHTTP:
		return fmt.Sprintf("backend %s: %d %s", e.Op, e.Status, e.Message)
	case e.Kind == KindDomain:
		return fmt.Sprintf("backend %s: code %d %s", e.Op, e.Code, e.Message)
	default:
		return fmt.Sprintf("backend %s: %s: %s", e.Op, e.Kind, e.Message)
	}
}

// Unwrap exposes both the domain sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	sentinel := domain.ErrBackendUnavailable
	if e.Kind == KindDomain {
		sentinel = domain.ErrBackendDomain
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// User-facing texts for failed completions.
const (
	TimeoutText       = "请求超时，请稍后再试。"
	UnknownFailText   = "处理您的请求时发生未知错误。"
	unknownDomainText = "未知错误"
)

// ErrorAnswer renders a Send failure the way users see it.
func ErrorAnswer(err error) Answer {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return Answer{Content: UnknownFailText, IsError: true}
	}
	switch apiErr.Kind {
	case KindTimeout:
		return Answer{Content: TimeoutText, IsError: true}
	case KindHTTP:
		if apiErr.Message != "" {
			return Answer{Content: "服务通讯失败: " + apiErr.Message, IsError: true}
		}
		return Answer{Content: fmt.Sprintf("服务通讯失败 (HTTP %d)。", apiErr.Status), IsError: true}
	case KindDomain:
		msg := apiErr.Message
		if msg == "" {
			msg = unknownDomainText
		}
		return Answer{Content: "服务返回错误: " + msg, IsError: true}
	default:
		return Answer{Content: UnknownFailText, IsError: true}
	}
}
