package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"debug", []string{"d-line", "i-line", "w-line", "e-line"}, nil},
		{"info", []string{"i-line", "w-line", "e-line"}, []string{"d-line"}},
		{"warn", []string{"w-line", "e-line"}, []string{"d-line", "i-line"}},
		{"silent", nil, []string{"d-line", "i-line", "w-line", "e-line"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.level)
			l.Debug().Msg("d-line")
			l.Info().Msg("i-line")
			l.Warn().Msg("w-line")
			l.Error().Msg("e-line")

			for _, s := range tt.visible {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info").Sub("routing").With("key", "session:group:wxid_a")

	l.Info().Msg("bound")
	out := buf.String()
	assert.Contains(t, out, `"subsystem":"routing"`)
	assert.Contains(t, out, `"key":"session:group:wxid_a"`)
	assert.Contains(t, out, `"time":`)
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, "info")
	fallback := New(nil, "silent")

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := IntoContext(context.Background(), root.With("requestId", "req-7"))
	FromContext(ctx, fallback).Info().Msg("from ctx")
	assert.Contains(t, buf.String(), `"requestId":"req-7"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"silent":  zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"WARN":    zerolog.WarnLevel,
		" Debug ": zerolog.DebugLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestOpen(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		l, closer, err := Open(Options{Level: "silent"})
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.NoError(t, closer.Close())
	})

	t.Run("with file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "ragrelay.log")

		l, closer, err := Open(Options{Level: "info", Style: "json", File: path})
		require.NoError(t, err)
		l.Info().Str("key", "session:private:wxid_a").Msg("written to file")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written to file")
		assert.Contains(t, string(data), `"key":"session:private:wxid_a"`)
	})

	t.Run("bad directory", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))

		_, _, err := Open(Options{File: filepath.Join(blocker, "sub", "x.log")})
		assert.Error(t, err)
	})
}
