// Package docstore defines the document database contract used by the content
// services, with MongoDB and SQLite implementations.
package docstore

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starford/insighthink/internal/apperr"
)

// Query selects documents for Find and Count. Results are ordered newest first.
type Query struct {
	// Filter matches top-level fields by equality.
	Filter map[string]any
	// Contains matches array fields that hold the given element.
	Contains map[string]string
	// Search is a case-insensitive substring match on the title field.
	Search string
	Skip   int64
	Limit  int64
}

// Collection is one logical collection of documents keyed by ObjectID.
//
// Documents are Go structs whose bson and json field names agree, with the
// identifier tagged `bson:"_id,omitempty" json:"id"`.
type Collection interface {
	Name() string
	// FindOne decodes the document with the given id into out.
	FindOne(ctx context.Context, id primitive.ObjectID, out any) error
	// FindOneBy decodes the first document matching q into out.
	FindOneBy(ctx context.Context, q Query, out any) error
	// InsertOne stores doc and returns its newly assigned id.
	InsertOne(ctx context.Context, doc any) (primitive.ObjectID, error)
	// UpdateOne merges the encoded fields of set into the stored document.
	UpdateOne(ctx context.Context, id primitive.ObjectID, set any) error
	// Increment adds delta to a numeric field.
	Increment(ctx context.Context, id primitive.ObjectID, field string, delta int) error
	DeleteOne(ctx context.Context, id primitive.ObjectID) error
	// Find decodes matching documents into out, which must point to a slice.
	Find(ctx context.Context, q Query, out any) error
	Count(ctx context.Context, q Query) (int64, error)
}

// Store hands out collections over one shared connection.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Observer receives the outcome of every collection operation.
type Observer func(collection, op string, elapsed time.Duration, err error)

var (
	fieldNameRe      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// ParseID converts the 24-character hex form into an ObjectID.
func ParseID(s string) (primitive.ObjectID, error) {
	if len(s) != 24 {
		return primitive.NilObjectID, apperr.Validation("invalid id %q", s)
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid id %q", s)
	}
	return id, nil
}

func errNoDocument() error {
	return apperr.NotFound("document")
}
