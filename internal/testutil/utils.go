package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// TestLogger returns a debug logger that prints only in verbose runs.
func TestLogger(t testing.TB) *slog.Logger {
	t.Helper()

	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stdout
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("test", t.Name())
}
