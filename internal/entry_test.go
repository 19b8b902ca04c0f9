package internal

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/insighthink/internal/metrics"
)

func TestOpenBackends_SQLiteAndDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.Store.SQLite.Path = filepath.Join(dir, "app.db")
	cfg.Blobs.Disk.Dir = filepath.Join(dir, "uploads")

	b, err := openBackends(context.Background(), cfg, metrics.New())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	defer b.close(logger)

	if _, err := os.Stat(cfg.Blobs.Disk.Dir); err != nil {
		t.Errorf("upload dir not created: %v", err)
	}

	rec := httptest.NewRecorder()
	readyHandler(b.store, logger)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready = %d, want 200", rec.Code)
	}
}

func TestReadyHandler_StoreDown(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.Store.SQLite.Path = filepath.Join(dir, "app.db")
	cfg.Blobs.Disk.Dir = filepath.Join(dir, "uploads")

	b, err := openBackends(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	b.close(logger)

	rec := httptest.NewRecorder()
	readyHandler(b.store, logger)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready after close = %d, want 503", rec.Code)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}
