package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_levels(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, false)
	log.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Info().Msg("shown")
	require.Contains(t, buf.String(), `"message":"shown"`)
}

func TestNew_dev(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, true)
	log.Debug().Msg("visible in dev")
	require.Contains(t, buf.String(), "visible in dev")
	// console writer output is not JSON
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer

	std := StdLogger(New(&buf, false), zerolog.WarnLevel)
	std.Printf("http: TLS handshake error from %s: %s", "127.0.0.1:1234", "EOF")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "http: TLS handshake error from 127.0.0.1:1234: EOF", entry["message"])
}
