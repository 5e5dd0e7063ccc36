// Package testutil provides shared test environment helpers. It depends
// only on stdlib so that external test packages can use it freely.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// Logger returns a debug-level text logger writing through t.Log, so
// store logs interleave with test output and vanish on success.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// StoreRoot creates a fresh store root directory beneath t.TempDir.
func StoreRoot(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "store")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("creating store root: %v", err)
	}

	return root
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
