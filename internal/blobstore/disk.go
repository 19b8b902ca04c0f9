package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/checksum"
)

// Disk implements Store on a local upload directory. Each object is a data
// file named by its id plus a "<id>.json" sidecar holding its Info.
type Disk struct {
	root string // absolute path to the upload directory
}

// NewDisk creates a Disk store rooted at dir, creating the directory if absent.
func NewDisk(dir string) (*Disk, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("blobstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("blobstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blobstore: root is not a directory: %s", abs)
	}
	return &Disk{root: abs}, nil
}

// objectPath maps an id to its data file. Only ObjectID hex ids are accepted,
// so the result can never escape the root.
func (d *Disk) objectPath(id string) (string, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil || len(id) != 24 {
		return "", apperr.Validation("invalid object id %q", id)
	}
	return filepath.Join(d.root, id), nil
}

// Put writes the object atomically: tmp file → fsync → rename.
func (d *Disk) Put(ctx context.Context, name string, r io.Reader, contentType string, metadata map[string]string) (*Info, error) {
	id := primitive.NewObjectID().Hex()
	abs, _ := d.objectPath(id)

	cr := checksum.NewReader(r)
	if err := writeAtomic(ctx, abs, cr); err != nil {
		return nil, apperr.Storage("blobstore.put", err)
	}
	info := &Info{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		Size:        cr.Size(),
		Checksum:    cr.Sum(),
		Metadata:    metadata,
		UploadedAt:  time.Now().UTC(),
	}
	sidecar, err := json.Marshal(info)
	if err == nil {
		err = writeAtomic(ctx, abs+".json", bytes.NewReader(sidecar))
	}
	if err != nil {
		_ = os.Remove(abs)
		return nil, apperr.Storage("blobstore.put", err)
	}
	return info, nil
}

// Open returns the object and its sidecar description.
func (d *Disk) Open(_ context.Context, id string) (*Object, error) {
	abs, err := d.objectPath(id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(abs + ".json")
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("object")
	}
	if err != nil {
		return nil, apperr.Storage("blobstore.open", err)
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, apperr.Storage("blobstore.open", err)
	}
	f, err := os.Open(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("object")
	}
	if err != nil {
		return nil, apperr.Storage("blobstore.open", err)
	}
	return &Object{Info: info, ReadCloser: f}, nil
}

// Delete removes the data file and its sidecar.
func (d *Disk) Delete(_ context.Context, id string) error {
	abs, err := d.objectPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.NotFound("object")
		}
		return apperr.Storage("blobstore.delete", err)
	}
	if err := os.Remove(abs + ".json"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Storage("blobstore.delete", err)
	}
	return nil
}

func writeAtomic(ctx context.Context, abs string, r io.Reader) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".upload-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	success = true
	return nil
}

// List returns every stored object, oldest first.
func (d *Disk) List() ([]Info, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, apperr.Storage("blobstore.list", err)
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(d.root, e.Name()))
		if err != nil {
			return nil, apperr.Storage("blobstore.list", err)
		}
		var info Info
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, apperr.Storage("blobstore.list", err)
		}
		out = append(out, info)
	}
	return out, nil
}
