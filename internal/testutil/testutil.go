// Package testutil provides shared test helpers for setting up stores and
// upload fixtures.
package testutil

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/docstore"
)

// PNGHeader is the signature plus IHDR start of a PNG file; enough for
// content sniffing to report image/png.
var PNGHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// PNG returns a fake PNG image of exactly size bytes.
func PNG(size int) []byte {
	if size < len(PNGHeader) {
		size = len(PNGHeader)
	}
	out := make([]byte, size)
	copy(out, PNGHeader)
	return out
}

// TestStore creates a temporary SQLite document store holding collections.
func TestStore(t *testing.T, collections ...string) docstore.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "insighthink-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	store, err := docstore.OpenSQLite(dbFile.Name(), collections...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

// TestBlobs creates a disk blob store in a temporary upload directory.
func TestBlobs(t *testing.T) *blobstore.Disk {
	t.Helper()
	blobs, err := blobstore.NewDisk(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	return blobs
}

// BlobCount returns how many objects the disk store holds.
func BlobCount(t *testing.T, blobs *blobstore.Disk) int {
	t.Helper()
	list, err := blobs.List()
	if err != nil {
		t.Fatal(err)
	}
	return len(list)
}

// Upload is one file part of a multipart body.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Multipart encodes fields and uploads as a multipart/form-data body and
// returns it with its Content-Type.
func Multipart(t *testing.T, fields map[string]string, uploads ...Upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+u.Field+`"; filename="`+u.Filename+`"`)
		h.Set("Content-Type", u.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(u.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}
