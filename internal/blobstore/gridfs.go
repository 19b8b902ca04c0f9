package blobstore

import (
	"context"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/checksum"
)

// DefaultBucket is the GridFS bucket name used for uploads.
const DefaultBucket = "uploads"

// GridFS implements Store on a MongoDB GridFS bucket.
type GridFS struct {
	db   *mongo.Database
	name string
}

type gridMetadata struct {
	ContentType string            `bson:"contentType"`
	Checksum    string            `bson:"checksum,omitempty"`
	Extra       map[string]string `bson:"extra,omitempty"`
}

// NewGridFS returns a store writing to the named bucket of db.
func NewGridFS(db *mongo.Database, bucket string) *GridFS {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &GridFS{db: db, name: bucket}
}

// bucket builds a fresh bucket handle per operation so deadlines from ctx
// never leak between concurrent requests.
func (g *GridFS) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.name))
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := b.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Put uploads r and records the BLAKE3 checksum once the stream completes.
func (g *GridFS) Put(ctx context.Context, name string, r io.Reader, contentType string, metadata map[string]string) (*Info, error) {
	b, err := g.bucket(ctx)
	if err != nil {
		return nil, apperr.Storage("blobstore.put", err)
	}
	cr := checksum.NewReader(r)
	opts := options.GridFSUpload().SetMetadata(gridMetadata{ContentType: contentType, Extra: metadata})
	id, err := b.UploadFromStream(name, cr, opts)
	if err != nil {
		return nil, apperr.Storage("blobstore.put", err)
	}
	sum := cr.Sum()
	_, err = g.db.Collection(g.name+".files").UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"metadata.checksum": sum}})
	if err != nil {
		_ = b.Delete(id)
		return nil, apperr.Storage("blobstore.put", err)
	}
	return &Info{
		ID:          id.Hex(),
		Name:        name,
		ContentType: contentType,
		Size:        cr.Size(),
		Checksum:    sum,
		Metadata:    metadata,
		UploadedAt:  time.Now().UTC(),
	}, nil
}

// Open starts a download stream for id.
func (g *GridFS) Open(ctx context.Context, id string) (*Object, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid object id %q", id)
	}
	b, err := g.bucket(ctx)
	if err != nil {
		return nil, apperr.Storage("blobstore.open", err)
	}
	stream, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, apperr.NotFound("object")
	}
	if err != nil {
		return nil, apperr.Storage("blobstore.open", err)
	}
	file := stream.GetFile()
	var meta gridMetadata
	if len(file.Metadata) > 0 {
		if err := bson.Unmarshal(file.Metadata, &meta); err != nil {
			_ = stream.Close()
			return nil, apperr.Storage("blobstore.open", err)
		}
	}
	return &Object{
		Info: Info{
			ID:          id,
			Name:        file.Name,
			ContentType: meta.ContentType,
			Size:        file.Length,
			Checksum:    meta.Checksum,
			Metadata:    meta.Extra,
			UploadedAt:  file.UploadDate,
		},
		ReadCloser: stream,
	}, nil
}

// Delete removes the file document and its chunks.
func (g *GridFS) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.Validation("invalid object id %q", id)
	}
	b, err := g.bucket(ctx)
	if err != nil {
		return apperr.Storage("blobstore.delete", err)
	}
	if err := b.Delete(oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return apperr.NotFound("object")
		}
		return apperr.Storage("blobstore.delete", err)
	}
	return nil
}
