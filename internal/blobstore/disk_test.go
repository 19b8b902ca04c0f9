package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/checksum"
)

func tempStore(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	return d
}

func TestPutAndOpen(t *testing.T) {
	d := tempStore(t)
	ctx := context.Background()
	data := "\x89PNG\r\n\x1a\nfake image"

	info, err := d.Put(ctx, "cover.png", strings.NewReader(data), "image/png", map[string]string{"field": "coverImage"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", info.Size, len(data))
	}
	if info.Checksum != checksum.Sum([]byte(data)) {
		t.Errorf("checksum = %s", info.Checksum)
	}

	obj, err := d.Open(ctx, info.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Close()
	got, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != data {
		t.Errorf("content mismatch: got %q", got)
	}
	if obj.ContentType != "image/png" || obj.Name != "cover.png" {
		t.Errorf("info = %+v", obj.Info)
	}
	if obj.Metadata["field"] != "coverImage" {
		t.Errorf("metadata = %v", obj.Metadata)
	}
}

func TestDeleteObject(t *testing.T) {
	d := tempStore(t)
	ctx := context.Background()
	info, err := d.Put(ctx, "a.jpg", strings.NewReader("bytes"), "image/jpeg", nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Delete(ctx, info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Open(ctx, info.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Open after delete: got %v, want not found", err)
	}
	if err := d.Delete(ctx, info.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete: got %v, want not found", err)
	}
}

func TestRejectsInvalidID(t *testing.T) {
	d := tempStore(t)
	for _, id := range []string{"", "../etc/passwd", "abc", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		if _, err := d.Open(context.Background(), id); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Open(%q): got %v, want validation error", id, err)
		}
	}
}

func TestNoTempFilesLeft(t *testing.T) {
	d := tempStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := d.Put(ctx, "x.webp", strings.NewReader("RIFF....WEBP"), "image/webp", nil); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	list, err := d.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("List returned %d objects, want 3", len(list))
	}
}

func TestPutCancelledContext(t *testing.T) {
	d := tempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Put(ctx, "x.png", strings.NewReader("data"), "image/png", nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	list, _ := d.List()
	if len(list) != 0 {
		t.Errorf("cancelled Put left %d objects", len(list))
	}
}
