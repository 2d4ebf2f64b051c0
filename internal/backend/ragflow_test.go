package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *RAGFlowClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRAGFlowClient(RAGFlowOptions{
		BaseURL:       srv.URL + "/api/v1/",
		APIKey:        "test-api-key",
		ChatID:        "test-chat-id",
		CreateTimeout: time.Second,
		SendTimeout:   time.Second,
	}, silentLog())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateSession(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chats/test-chat-id/sessions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"id": "test-session-123"}})
	})

	handle, err := client.CreateSession(context.Background(), "wxid_abc")
	require.NoError(t, err)
	assert.Equal(t, "test-session-123", handle)
	assert.Equal(t, "wxid_abc", gotBody["name"])
}

func TestCreateSessionFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		kind     string
		sentinel error
	}{
		{"domain code", http.StatusOK, map[string]any{"code": 102, "message": "chat not found"}, KindDomain, domain.ErrBackendDomain},
		{"http error", http.StatusInternalServerError, map[string]any{"message": "boom"}, KindHTTP, domain.ErrBackendUnavailable},
		{"missing id", http.StatusOK, map[string]any{"code": 0, "data": map[string]any{}}, KindMalformed, domain.ErrBackendUnavailable},
		{"data not object", http.StatusOK, map[string]any{"code": 0, "data": true}, KindMalformed, domain.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			handle, err := client.CreateSession(context.Background(), "title")
			require.Error(t, err)
			assert.Empty(t, handle)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, "create_session", apiErr.Op)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestCreateSessionTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewRAGFlowClient(RAGFlowOptions{
		BaseURL:       srv.URL,
		ChatID:        "c",
		CreateTimeout: 50 * time.Millisecond,
	}, silentLog())

	_, err := client.CreateSession(context.Background(), "t")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTimeout, apiErr.Kind)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestSend(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chats/test-chat-id/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"answer": "  这是一个测试回复\n"}})
	})

	answer := client.Send(context.Background(), "这是一个测试问题", "test-session-id")
	assert.Equal(t, Answer{Content: "这是一个测试回复"}, answer)
	assert.Equal(t, "这是一个测试问题", gotBody["question"])
	assert.Equal(t, "test-session-id", gotBody["session_id"])
	assert.Equal(t, false, gotBody["stream"])
}

func TestSendErrorAnswers(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "domain error with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"code": 100, "message": "session expired"})
			},
			want: "服务返回错误: session expired",
		},
		{
			name: "domain error without message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"code": 100})
			},
			want: "服务返回错误: 未知错误",
		},
		{
			name: "data not an object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": false})
			},
			want: "服务返回错误: 未知错误",
		},
		{
			name: "data null",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": nil})
			},
			want: "服务返回错误: 未知错误",
		},
		{
			name: "data missing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"code": 0, "message": "no data"})
			},
			want: "服务返回错误: no data",
		},
		{
			name: "data is a list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": []string{"x"}})
			},
			want: "服务返回错误: 未知错误",
		},
		{
			name: "http error with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid key"})
			},
			want: "服务通讯失败: invalid key",
		},
		{
			name: "http error without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: "服务通讯失败 (HTTP 502)。",
		},
		{
			name: "non-json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			want: UnknownFailText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			answer := client.Send(context.Background(), "q", "s")
			assert.True(t, answer.IsError)
			assert.Equal(t, tt.want, answer.Content)
		})
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewRAGFlowClient(RAGFlowOptions{
		BaseURL:     srv.URL,
		ChatID:      "c",
		SendTimeout: 50 * time.Millisecond,
	}, silentLog())

	answer := client.Send(context.Background(), "q", "s")
	assert.Equal(t, Answer{Content: TimeoutText, IsError: true}, answer)
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewRAGFlowClient(RAGFlowOptions{BaseURL: base, ChatID: "c"}, silentLog())
	answer := client.Send(context.Background(), "q", "s")
	assert.True(t, answer.IsError)
	assert.Equal(t, UnknownFailText, answer.Content)
}

func TestErrorAnswerUnknown(t *testing.T) {
	assert.Equal(t, Answer{Content: UnknownFailText, IsError: true}, ErrorAnswer(errors.New("plain")))
}

func TestAPIErrorString(t *testing.T) {
	assert.Equal(t, "backend completion: 503 down", (&APIError{Op: "completion", Kind: KindHTTP, Status: 503, Message: "down"}).Error())
	assert.Equal(t, "backend create_session: code 102 nope", (&APIError{Op: "create_session", Kind: KindDomain, Code: 102, Message: "nope"}).Error())
	assert.Equal(t, "backend completion: timeout: request timed out", (&APIError{Op: "completion", Kind: KindTimeout, Message: "request timed out"}).Error())
}

func TestMockClientDefaults(t *testing.T) {
	var c Client = &MockClient{}
	handle, err := c.CreateSession(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "mock-session", handle)
	assert.Equal(t, "mock answer", c.Send(context.Background(), "q", handle).Content)
}
