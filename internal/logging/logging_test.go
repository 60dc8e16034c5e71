package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	tcases := map[string]Env{
		"prod":       EnvProd,
		"Production": EnvProd,
		" staging ":  EnvStage,
		"stage":      EnvStage,
		"":           EnvDev,
		"local":      EnvDev,
	}

	for raw, want := range tcases {
		assert.Equal(t, want, ParseEnv(raw), "unexpected env for %q", raw)
	}
}

func TestNew_StdBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "meet", Version: "1.2.3", Env: EnvDev}, &buf)

	logger.Debug("hidden")
	logger.Info("room created", "room_id", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "expected debug to be filtered without Debug")
	assert.Contains(t, out, `msg="room created"`)
	assert.Contains(t, out, "room_id=abc")
	assert.Contains(t, out, "service=meet")
	assert.Contains(t, out, "version=1.2.3")
	assert.Contains(t, out, "instance_id=")
}

func TestNew_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Env: EnvDev, Debug: true}, &buf)

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "service=go-meet", "expected default service name")
}

func TestNew_ZapBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "meet", Env: EnvProd, InstanceId: "node-1"}, &buf)

	logger.Info("joined room", "room_id", "abc")

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line, "expected zap to write a line")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry), "expected JSON output, got %s", line)
	assert.Equal(t, "joined room", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "abc", entry["room_id"])
	assert.Equal(t, "meet", entry["service"])
	assert.Equal(t, "prod", entry["env"])
	assert.Equal(t, "node-1", entry["instance_id"])
	assert.Contains(t, entry, "ts")
}

func TestNew_ExplicitBackendWins(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Env: EnvProd, Backend: BackendStd}, &buf)

	logger.Info("plain")
	assert.True(t, strings.HasPrefix(buf.String(), "time="), "expected text handler output, got %s", buf.String())
}
