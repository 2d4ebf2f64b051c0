package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	return &Document{root: map[string]any{
		"gateway": map[string]any{
			"port": 5000,
			"auth": map[string]any{"token": "secret"},
		},
		"logLevel": "info",
	}}
}

func TestDocument_Get(t *testing.T) {
	tests := []struct {
		key     string
		want    any
		wantErr error
	}{
		{"gateway.port", 5000, nil},
		{"gateway.auth.token", "secret", nil},
		{"logLevel", "info", nil},
		{"gateway.missing", nil, ErrKeyNotFound},
		{"logLevel.sub", nil, ErrKeyNotFound},
		{"backend.chatId", nil, ErrKeyNotFound},
	}

	doc := sampleDocument()
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := doc.Get(tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	sub, err := doc.Get("gateway.auth")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"token": "secret"}, sub)
}

func TestDocument_InvalidKeys(t *testing.T) {
	doc := sampleDocument()
	for _, key := range []string{"", "gateway..port", ".gateway", "gateway.", "gateway.$port", "1st.key", "a b"} {
		t.Run(key, func(t *testing.T) {
			var ce *ConfigError

			_, err := doc.Get(key)
			assert.ErrorAs(t, err, &ce)
			assert.ErrorAs(t, doc.Set(key, 1), &ce)
			assert.ErrorAs(t, doc.Unset(key), &ce)
		})
	}
}

func TestDocument_Set(t *testing.T) {
	doc := sampleDocument()

	require.NoError(t, doc.Set("gateway.port", 9999))
	require.NoError(t, doc.Set("channel.botWxid", "wxid_bot"))
	require.NoError(t, doc.Set("logLevel.value", "debug"))

	v, err := doc.Get("gateway.port")
	require.NoError(t, err)
	assert.Equal(t, 9999, v)

	v, err = doc.Get("channel.botWxid")
	require.NoError(t, err)
	assert.Equal(t, "wxid_bot", v)

	// The scalar in the way became a map.
	v, err = doc.Get("logLevel.value")
	require.NoError(t, err)
	assert.Equal(t, "debug", v)

	v, err = doc.Get("gateway.auth.token")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)
}

func TestDocument_Unset(t *testing.T) {
	doc := sampleDocument()

	require.NoError(t, doc.Unset("gateway.auth.token"))
	_, err := doc.Get("gateway.auth.token")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = doc.Get("gateway.port")
	assert.NoError(t, err)

	assert.ErrorIs(t, doc.Unset("gateway.auth.token"), ErrKeyNotFound)
	assert.ErrorIs(t, doc.Unset("backend.chatId"), ErrKeyNotFound)
	assert.ErrorIs(t, doc.Unset("logLevel.sub"), ErrKeyNotFound)
}

func TestDocument_SaveAndReopen(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			doc, err := OpenDocument(path)
			require.NoError(t, err)
			require.NoError(t, doc.Set("backend.chatId", "chat-1"))
			require.NoError(t, doc.Save())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			reopened, err := OpenDocument(path)
			require.NoError(t, err)
			v, err := reopened.Get("backend.chatId")
			require.NoError(t, err)
			assert.Equal(t, "chat-1", v)

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "chat-1", cfg.Backend.ChatID)
		})
	}
}

func TestOpenDocument_MissingFile(t *testing.T) {
	doc, err := OpenDocument(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	_, err = doc.Get("gateway")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestOpenDocument_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [unterminated"), 0o600))

	_, err := OpenDocument(path)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}
