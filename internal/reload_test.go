package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeConfig(t *testing.T, path, level string) {
	t.Helper()
	body := fmt.Sprintf("app:\n  log_level: %s\nauth:\n  session_secret: %s\n", level, testSecret)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatchConfig_ReloadsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var level slog.LevelVar
	var mu sync.Mutex
	var reloads int
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WatchConfig(ctx, path, logger, func(cfg *Config) {
			level.Set(cfg.App.LogLevel)
			mu.Lock()
			reloads++
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "debug")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return level.Level() == slog.LevelDebug
	}, "log level not reloaded")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatchConfig_InvalidFileKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "info")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var applied []slog.Level
	go WatchConfig(ctx, path, logger, func(cfg *Config) {
		mu.Lock()
		applied = append(applied, cfg.App.LogLevel)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("app:\n  http:\n    port: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A sibling file must not trigger a reload.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	n := len(applied)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("invalid config applied %d times", n)
	}

	writeConfig(t, path, "warn")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1 && applied[0] == slog.LevelWarn
	}, "valid config not applied after an invalid one")
}
