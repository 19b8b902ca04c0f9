package content

import (
	"time"

	"github.com/starford/insighthink/internal/ingest"
	"github.com/starford/insighthink/internal/models"
)

// Strategy says how a stored asset is referenced from its document.
type Strategy int

const (
	// BlobID stores the raw blob identifier (book covers).
	BlobID Strategy = iota
	// URL stores the served file URL, models.FileURL(id).
	URL
)

// Asset declares one upload field of a content type.
type Asset struct {
	Field    string
	Strategy Strategy
	// URLField is the text field that may carry an external URL instead
	// of an upload. Empty when the reference cannot be set directly.
	URLField string
}

func (a Asset) ref(blobID string) string {
	if a.Strategy == URL {
		return models.FileURL(blobID)
	}
	return blobID
}

// owned returns the blob id behind ref when the document owns it. Directly
// supplied external URLs are never owned.
func (a Asset) owned(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if a.Strategy == BlobID {
		return ref, true
	}
	return models.OwnedBlob(ref)
}

// Input is what a kind's builders see.
type Input struct {
	// Fields holds the normalized declared fields.
	Fields ingest.Fields
	// Refs maps an asset field to the reference of the blob stored for it
	// by the current request.
	Refs  map[string]string
	Actor *models.User
	Now   time.Time
}

// Patch is a partial update that can be merged onto its document.
type Patch[T any] interface {
	Apply(*T)
}

// Kind describes how one content type is ingested and stored.
type Kind[T any, P Patch[T]] struct {
	Collection string
	Fields     []ingest.FieldSpec
	// Required fields must be present and non-blank on create, and must
	// stay non-blank when supplied to an update.
	Required []string
	Assets   []Asset
	// TagField is the list field matched by the tag list filter.
	TagField string
	// RequireActor rejects anonymous creates.
	RequireActor bool

	// New assembles a document for create. Nil disables create.
	New func(in Input) *T
	// Patch builds the partial update for the supplied fields of existing.
	Patch func(in Input, existing *T) P
	// Refs returns the current asset reference of doc per asset field.
	Refs func(doc *T) map[string]string
	// Owner returns the id of the only user allowed to change doc. Nil
	// lets anyone change it.
	Owner func(doc *T) string
	// Validate checks a document before it is written. Optional.
	Validate func(doc *T) error
}

func (k *Kind[T, P]) fileFields() []string {
	out := make([]string, len(k.Assets))
	for i, a := range k.Assets {
		out[i] = a.Field
	}
	return out
}
