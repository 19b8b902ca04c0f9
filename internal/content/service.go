// Package content is the ingestion orchestrator: it turns decoded requests
// into stored documents and blobs for every content type.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/docstore"
	"github.com/starford/insighthink/internal/ingest"
	"github.com/starford/insighthink/internal/metrics"
	"github.com/starford/insighthink/internal/models"
	"github.com/starford/insighthink/internal/sse"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Publisher receives document change notifications.
type Publisher interface {
	PublishContentEvent(kind, collection, id string)
}

// Option configures a Service.
type Option func(*options)

type options struct {
	events  Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// WithEvents publishes created/updated/deleted events to p.
func WithEvents(p Publisher) Option {
	return func(o *options) { o.events = p }
}

// WithMetrics records asset and change counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Now is the default clock. Timestamps are kept at millisecond precision so
// that they survive a round trip through either document store unchanged.
func Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// Service runs create, update and delete for one content type.
type Service[T any, P Patch[T]] struct {
	kind  Kind[T, P]
	coll  docstore.Collection
	blobs blobstore.Store
	opts  options
}

// NewService binds kind to its collection in store.
func NewService[T any, P Patch[T]](kind Kind[T, P], store docstore.Store, blobs blobstore.Store, opts ...Option) *Service[T, P] {
	o := options{now: Now}
	for _, fn := range opts {
		fn(&o)
	}
	return &Service[T, P]{
		kind:  kind,
		coll:  store.Collection(kind.Collection),
		blobs: blobs,
		opts:  o,
	}
}

// Collection returns the collection name.
func (s *Service[T, P]) Collection() string { return s.kind.Collection }

// FileFields lists the request fields that carry assets.
func (s *Service[T, P]) FileFields() []string { return s.kind.fileFields() }

// Get loads one document.
func (s *Service[T, P]) Get(ctx context.Context, id string) (*T, error) {
	oid, err := docstore.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, oid)
}

func (s *Service[T, P]) load(ctx context.Context, oid primitive.ObjectID) (*T, error) {
	var doc T
	if err := s.coll.FindOne(ctx, oid, &doc); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(s.noun())
		}
		return nil, err
	}
	return &doc, nil
}

// ListQuery selects one page of a collection.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
	Tag    string
	// Filter holds extra equality conditions, e.g. {"authorId": id}.
	Filter map[string]any
}

// Page is one page of results.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	Page       int   `json:"page"`
}

// List returns documents newest first.
func (s *Service[T, P]) List(ctx context.Context, q ListQuery) (*Page[T], error) {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit < 1:
		q.Limit = defaultPageSize
	case q.Limit > maxPageSize:
		q.Limit = maxPageSize
	}
	dq := docstore.Query{
		Filter: q.Filter,
		Search: strings.TrimSpace(q.Search),
		Skip:   int64((q.Page - 1) * q.Limit),
		Limit:  int64(q.Limit),
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" && s.kind.TagField != "" {
		dq.Contains = map[string]string{s.kind.TagField: tag}
	}

	total, err := s.coll.Count(ctx, dq)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if err := s.coll.Find(ctx, dq, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		Page:       q.Page,
	}, nil
}

// Create validates the request, stores its assets and inserts the document.
// When the insert fails the stored assets are removed again.
func (s *Service[T, P]) Create(ctx context.Context, req *ingest.Request, actor *models.User) (*T, error) {
	if s.kind.New == nil {
		return nil, apperr.Validation("%s cannot be created here", s.kind.Collection)
	}
	if s.kind.RequireActor && actor == nil {
		return nil, apperr.Unauthorized("sign in to create " + s.kind.Collection)
	}

	fields := ingest.Normalize(req.Fields, s.kind.Fields)
	if err := ingest.Require(fields, s.kind.Required...); err != nil {
		return nil, err
	}
	if err := s.checkLinks(fields, nil); err != nil {
		return nil, err
	}
	files, err := s.validateFiles(req)
	if err != nil {
		return nil, err
	}
	stored, err := s.storeFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	in := Input{Fields: fields, Refs: s.refs(stored), Actor: actor, Now: s.opts.now()}
	doc := s.kind.New(in)
	if s.kind.Validate != nil {
		if err := s.kind.Validate(doc); err != nil {
			s.discard(stored)
			return nil, err
		}
	}

	oid, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		s.discard(stored)
		return nil, err
	}
	created, err := s.load(ctx, oid)
	if err != nil {
		return nil, err
	}
	s.changed(sse.Created, oid)
	return created, nil
}

// Update applies the supplied fields and assets to an existing document.
// Replaced blobs owned by the document are removed once the write succeeds;
// new blobs are removed if it fails.
func (s *Service[T, P]) Update(ctx context.Context, id string, req *ingest.Request, actor *models.User) (*T, error) {
	oid, err := docstore.ParseID(id)
	if err != nil {
		return nil, err
	}
	existing, err := s.load(ctx, oid)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(existing, actor); err != nil {
		return nil, err
	}

	fields := ingest.Normalize(req.Fields, s.kind.Fields)
	var blank []string
	for _, name := range s.kind.Required {
		if fields.Has(name) && strings.TrimSpace(fields.TextOr(name, "")) == "" {
			blank = append(blank, name)
		}
	}
	if len(blank) > 0 {
		return nil, apperr.Validation("field(s) cannot be empty: %s", strings.Join(blank, ", "))
	}
	if err := s.checkLinks(fields, s.kind.Refs(existing)); err != nil {
		return nil, err
	}
	files, err := s.validateFiles(req)
	if err != nil {
		return nil, err
	}
	stored, err := s.storeFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	in := Input{Fields: fields, Refs: s.refs(stored), Actor: actor, Now: s.opts.now()}
	patch := s.kind.Patch(in, existing)
	merged := *existing
	patch.Apply(&merged)
	if s.kind.Validate != nil {
		if err := s.kind.Validate(&merged); err != nil {
			s.discard(stored)
			return nil, err
		}
	}

	if err := s.coll.UpdateOne(ctx, oid, patch); err != nil {
		s.discard(stored)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(s.noun())
		}
		return nil, err
	}
	s.release(s.superseded(existing, &merged))

	updated, err := s.load(ctx, oid)
	if err != nil {
		return nil, err
	}
	s.changed(sse.Updated, oid)
	return updated, nil
}

// DeleteResult reports a delete. Warnings list blobs that could not be
// removed after the document was gone.
type DeleteResult struct {
	Message  string   `json:"message"`
	ID       string   `json:"id"`
	Warnings []string `json:"warnings,omitempty"`
}

// Delete removes the document first and its owned blobs second. Blob
// failures do not undo the delete; they are reported as warnings.
func (s *Service[T, P]) Delete(ctx context.Context, id string, actor *models.User) (*DeleteResult, error) {
	oid, err := docstore.ParseID(id)
	if err != nil {
		return nil, err
	}
	existing, err := s.load(ctx, oid)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(existing, actor); err != nil {
		return nil, err
	}
	if err := s.coll.DeleteOne(ctx, oid); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(s.noun())
		}
		return nil, err
	}

	res := &DeleteResult{Message: s.noun() + " deleted", ID: oid.Hex()}
	for _, blobID := range s.owned(existing) {
		if err := s.blobs.Delete(ctx, blobID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.cleanupFailed(blobID, err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("asset %s was not removed", blobID))
		}
	}
	s.changed(sse.Deleted, oid)
	return res, nil
}

// Counter fields accepted by Increment.
const (
	Likes = "likes"
	Views = "views"
)

// Increment bumps a counter and returns the updated document.
func (s *Service[T, P]) Increment(ctx context.Context, id, field string) (*T, error) {
	if field != Likes && field != Views {
		return nil, apperr.Validation("unknown counter %q", field)
	}
	oid, err := docstore.ParseID(id)
	if err != nil {
		return nil, err
	}
	if err := s.coll.Increment(ctx, oid, field, 1); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(s.noun())
		}
		return nil, err
	}
	return s.load(ctx, oid)
}

func (s *Service[T, P]) authorize(doc *T, actor *models.User) error {
	if s.kind.Owner == nil {
		return nil
	}
	if actor == nil {
		return apperr.Unauthorized("sign in to change " + s.kind.Collection)
	}
	if s.kind.Owner(doc) != actor.ID.Hex() {
		return apperr.Forbidden("only the author can change this " + s.noun())
	}
	return nil
}

type storedFile struct {
	asset Asset
	info  *blobstore.Info
}

type pendingFile struct {
	asset Asset
	file  *ingest.File
}

// checkLinks rejects URL fields pointing into the blob store. A document
// only owns blobs it uploaded itself, so the one stored-file URL a client
// may send back is the document's current value in current.
func (s *Service[T, P]) checkLinks(fields ingest.Fields, current map[string]string) error {
	for _, a := range s.kind.Assets {
		if a.URLField == "" {
			continue
		}
		v, ok := fields.Text(a.URLField)
		if !ok || !strings.HasPrefix(v, models.FilesPrefix) || v == current[a.Field] {
			continue
		}
		return apperr.Validation("%s cannot reference a stored file; upload %s instead", a.URLField, a.Field)
	}
	return nil
}

// validateFiles checks every supplied asset before anything is persisted.
func (s *Service[T, P]) validateFiles(req *ingest.Request) ([]pendingFile, error) {
	var out []pendingFile
	for _, a := range s.kind.Assets {
		f := req.Files[a.Field]
		if f == nil {
			continue
		}
		if err := ingest.ValidateAsset(f); err != nil {
			s.opts.metrics.RecordAsset(s.kind.Collection, "rejected")
			return nil, err
		}
		out = append(out, pendingFile{asset: a, file: f})
	}
	return out, nil
}

func (s *Service[T, P]) storeFiles(ctx context.Context, files []pendingFile) ([]storedFile, error) {
	var stored []storedFile
	for _, pf := range files {
		info, err := s.put(ctx, pf)
		if err != nil {
			s.opts.metrics.RecordAsset(s.kind.Collection, "failed")
			s.discard(stored)
			return nil, err
		}
		s.opts.metrics.RecordAsset(s.kind.Collection, "stored")
		stored = append(stored, storedFile{asset: pf.asset, info: info})
	}
	return stored, nil
}

func (s *Service[T, P]) put(ctx context.Context, pf pendingFile) (*blobstore.Info, error) {
	rc, err := pf.file.Open()
	if err != nil {
		return nil, apperr.Decode("cannot read uploaded file", err)
	}
	defer rc.Close()
	return s.blobs.Put(ctx, pf.file.OriginalName, rc, pf.file.ContentType, map[string]string{
		"collection":   s.kind.Collection,
		"field":        pf.asset.Field,
		"originalName": pf.file.OriginalName,
	})
}

func (s *Service[T, P]) refs(stored []storedFile) map[string]string {
	out := make(map[string]string, len(stored))
	for _, sf := range stored {
		out[sf.asset.Field] = sf.asset.ref(sf.info.ID)
	}
	return out
}

// discard removes blobs stored by a request that did not complete.
func (s *Service[T, P]) discard(stored []storedFile) {
	ids := make([]string, len(stored))
	for i, sf := range stored {
		ids[i] = sf.info.ID
	}
	s.release(ids)
}

// release deletes blobs best-effort. It runs after the request outcome is
// settled, so it does not use the request context.
func (s *Service[T, P]) release(ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, id := range ids {
		if err := s.blobs.Delete(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.cleanupFailed(id, err)
		}
	}
}

func (s *Service[T, P]) owned(doc *T) []string {
	if s.kind.Refs == nil {
		return nil
	}
	refs := s.kind.Refs(doc)
	var ids []string
	for _, a := range s.kind.Assets {
		if id, ok := a.owned(refs[a.Field]); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// superseded returns the owned blobs of before that after no longer points to.
func (s *Service[T, P]) superseded(before, after *T) []string {
	if s.kind.Refs == nil {
		return nil
	}
	old, cur := s.kind.Refs(before), s.kind.Refs(after)
	var ids []string
	for _, a := range s.kind.Assets {
		if old[a.Field] == cur[a.Field] {
			continue
		}
		if id, ok := a.owned(old[a.Field]); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Service[T, P]) cleanupFailed(blobID string, err error) {
	s.opts.metrics.RecordCleanupFailure(s.kind.Collection)
	slog.Warn("blob cleanup failed",
		slog.String("collection", s.kind.Collection),
		slog.String("blob", blobID),
		slog.String("error", err.Error()),
	)
}

func (s *Service[T, P]) changed(kind string, oid primitive.ObjectID) {
	s.opts.metrics.RecordChange(s.kind.Collection, kind)
	if s.opts.events != nil {
		s.opts.events.PublishContentEvent(kind, s.kind.Collection, oid.Hex())
	}
}

// noun is the singular used in messages: "books" → "book".
func (s *Service[T, P]) noun() string {
	return strings.TrimSuffix(s.kind.Collection, "s")
}
