package content

import (
	"context"

	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/docstore"
	"github.com/starford/insighthink/internal/ingest"
	"github.com/starford/insighthink/internal/models"
)

// Resource is the type-independent view of a Service used by the HTTP and
// MCP transports.
type Resource interface {
	Collection() string
	FileFields() []string
	Get(ctx context.Context, id string) (any, error)
	List(ctx context.Context, q ListQuery) (*Page[any], error)
	Create(ctx context.Context, req *ingest.Request, actor *models.User) (any, error)
	Update(ctx context.Context, id string, req *ingest.Request, actor *models.User) (any, error)
	Delete(ctx context.Context, id string, actor *models.User) (*DeleteResult, error)
	Increment(ctx context.Context, id, field string) (any, error)
}

// Resource returns s as a Resource.
func (s *Service[T, P]) Resource() Resource { return resource[T, P]{s} }

type resource[T any, P Patch[T]] struct {
	s *Service[T, P]
}

func (r resource[T, P]) Collection() string   { return r.s.Collection() }
func (r resource[T, P]) FileFields() []string { return r.s.FileFields() }

func (r resource[T, P]) Get(ctx context.Context, id string) (any, error) {
	v, err := r.s.Get(ctx, id)
	return erase(v, err)
}

func (r resource[T, P]) List(ctx context.Context, q ListQuery) (*Page[any], error) {
	p, err := r.s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(p.Items))
	for i := range p.Items {
		items[i] = &p.Items[i]
	}
	return &Page[any]{Items: items, Total: p.Total, TotalPages: p.TotalPages, Page: p.Page}, nil
}

func (r resource[T, P]) Create(ctx context.Context, req *ingest.Request, actor *models.User) (any, error) {
	v, err := r.s.Create(ctx, req, actor)
	return erase(v, err)
}

func (r resource[T, P]) Update(ctx context.Context, id string, req *ingest.Request, actor *models.User) (any, error) {
	v, err := r.s.Update(ctx, id, req, actor)
	return erase(v, err)
}

func (r resource[T, P]) Delete(ctx context.Context, id string, actor *models.User) (*DeleteResult, error) {
	return r.s.Delete(ctx, id, actor)
}

func (r resource[T, P]) Increment(ctx context.Context, id, field string) (any, error) {
	v, err := r.s.Increment(ctx, id, field)
	return erase(v, err)
}

// erase keeps a typed nil pointer from turning into a non-nil interface.
func erase[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Services bundles the content services of every public content type.
type Services struct {
	Books    *Service[models.Book, *models.BookPatch]
	Videos   *Service[models.Video, *models.VideoPatch]
	Articles *Service[models.Article, *models.ArticlePatch]
	Posts    *Service[models.Post, *models.PostPatch]
	Curated  *Service[models.Curated, *models.CuratedPatch]
}

// NewServices builds every content service over the same stores.
func NewServices(store docstore.Store, blobs blobstore.Store, opts ...Option) *Services {
	return &Services{
		Books:    NewService(BookKind(), store, blobs, opts...),
		Videos:   NewService(VideoKind(), store, blobs, opts...),
		Articles: NewService(ArticleKind(), store, blobs, opts...),
		Posts:    NewService(PostKind(), store, blobs, opts...),
		Curated:  NewService(CuratedKind(), store, blobs, opts...),
	}
}

// Resources returns the services keyed by collection name.
func (s *Services) Resources() map[string]Resource {
	return map[string]Resource{
		Books:    s.Books.Resource(),
		Videos:   s.Videos.Resource(),
		Articles: s.Articles.Resource(),
		Posts:    s.Posts.Resource(),
		Curated:  s.Curated.Resource(),
	}
}
