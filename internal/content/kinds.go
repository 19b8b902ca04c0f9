package content

import (
	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/ingest"
	"github.com/starford/insighthink/internal/models"
	"github.com/starford/insighthink/internal/richtext"
)

// Collection names.
const (
	Books    = "books"
	Videos   = "videos"
	Articles = "articles"
	Posts    = "posts"
	Curated  = "curated"
	Users    = "users"
)

// Collections lists every collection the service stores documents in.
var Collections = []string{Books, Videos, Articles, Posts, Curated, Users}

// BookKind ingests library books. Covers are referenced by blob id.
func BookKind() Kind[models.Book, *models.BookPatch] {
	return Kind[models.Book, *models.BookPatch]{
		Collection: Books,
		Fields: []ingest.FieldSpec{
			{Name: "title", Kind: ingest.Text},
			{Name: "author", Kind: ingest.Text},
			{Name: "description", Kind: ingest.Text},
			{Name: "content", Kind: ingest.Text},
			{Name: "genres", Kind: ingest.Tags},
			{Name: "pageCount", Kind: ingest.Int},
			{Name: "readingTime", Kind: ingest.Int},
			{Name: "publishedYear", Kind: ingest.Int},
			{Name: "isbn", Kind: ingest.Text},
			{Name: "language", Kind: ingest.Text},
			{Name: "chapters", Kind: ingest.JSON},
			{Name: "keyTerms", Kind: ingest.JSON},
			{Name: "removeCover", Kind: ingest.Bool},
		},
		Required: []string{"title", "author"},
		Assets:   []Asset{{Field: "coverImage", Strategy: BlobID}},
		TagField: "genres",
		New: func(in Input) *models.Book {
			f := in.Fields
			b := &models.Book{
				Title:         val(text(f, "title")),
				Author:        val(text(f, "author")),
				Description:   val(text(f, "description")),
				Content:       val(text(f, "content")),
				Genres:        tagsOrEmpty(f, "genres"),
				PageCount:     integer(f, "pageCount"),
				ReadingTime:   integer(f, "readingTime"),
				PublishedYear: integer(f, "publishedYear"),
				ISBN:          val(text(f, "isbn")),
				Language:      val(text(f, "language")),
				CoverImageID:  in.Refs["coverImage"],
				Chapters:      chapters(f),
				KeyTerms:      keyTerms(f),
			}
			b.HasCover = b.CoverImageID != ""
			b.Touch(in.Now)
			return b
		},
		Patch: func(in Input, _ *models.Book) *models.BookPatch {
			f := in.Fields
			p := &models.BookPatch{
				Title:         text(f, "title"),
				Author:        text(f, "author"),
				Description:   text(f, "description"),
				Content:       text(f, "content"),
				Genres:        tags(f, "genres"),
				PageCount:     integer(f, "pageCount"),
				ReadingTime:   integer(f, "readingTime"),
				PublishedYear: integer(f, "publishedYear"),
				ISBN:          text(f, "isbn"),
				Language:      text(f, "language"),
				UpdatedAt:     in.Now,
			}
			if f.Has("chapters") {
				c := chapters(f)
				p.Chapters = &c
			}
			if f.Has("keyTerms") {
				k := keyTerms(f)
				p.KeyTerms = &k
			}
			if ref, ok := in.Refs["coverImage"]; ok {
				p.CoverImageID, p.HasCover = &ref, ptr(true)
			} else if remove, _ := f.Bool("removeCover"); remove {
				p.CoverImageID, p.HasCover = ptr(""), ptr(false)
			}
			return p
		},
		Refs: func(b *models.Book) map[string]string {
			return map[string]string{"coverImage": b.CoverImageID}
		},
	}
}

// VideoKind ingests embedded videos.
func VideoKind() Kind[models.Video, *models.VideoPatch] {
	return Kind[models.Video, *models.VideoPatch]{
		Collection: Videos,
		Fields: []ingest.FieldSpec{
			{Name: "title", Kind: ingest.Text},
			{Name: "description", Kind: ingest.Text},
			{Name: "embedUrl", Kind: ingest.Text},
			{Name: "thumbnailUrl", Kind: ingest.Text},
			{Name: "creatorName", Kind: ingest.Text},
			{Name: "creatorAvatarUrl", Kind: ingest.Text},
			{Name: "category", Kind: ingest.Text},
			{Name: "tags", Kind: ingest.Tags},
			{Name: "duration", Kind: ingest.Int},
		},
		Required: []string{"title"},
		Assets: []Asset{
			{Field: "thumbnail", Strategy: URL, URLField: "thumbnailUrl"},
			{Field: "creatorAvatar", Strategy: URL, URLField: "creatorAvatarUrl"},
		},
		TagField: "tags",
		New: func(in Input) *models.Video {
			f := in.Fields
			v := &models.Video{
				Title:            val(text(f, "title")),
				Description:      val(text(f, "description")),
				EmbedURL:         val(text(f, "embedUrl")),
				ThumbnailURL:     val(assetRef(in, "thumbnail", "thumbnailUrl")),
				CreatorName:      f.TextOr("creatorName", actorName(in)),
				CreatorAvatarURL: val(assetRef(in, "creatorAvatar", "creatorAvatarUrl")),
				Category:         val(text(f, "category")),
				Tags:             tagsOrEmpty(f, "tags"),
				Duration:         integer(f, "duration"),
			}
			v.Touch(in.Now)
			return v
		},
		Patch: func(in Input, _ *models.Video) *models.VideoPatch {
			f := in.Fields
			return &models.VideoPatch{
				Title:            text(f, "title"),
				Description:      text(f, "description"),
				EmbedURL:         text(f, "embedUrl"),
				ThumbnailURL:     assetRef(in, "thumbnail", "thumbnailUrl"),
				CreatorName:      nonBlank(f, "creatorName"),
				CreatorAvatarURL: assetRef(in, "creatorAvatar", "creatorAvatarUrl"),
				Category:         text(f, "category"),
				Tags:             tags(f, "tags"),
				Duration:         integer(f, "duration"),
				UpdatedAt:        in.Now,
			}
		},
		Refs: func(v *models.Video) map[string]string {
			return map[string]string{"thumbnail": v.ThumbnailURL, "creatorAvatar": v.CreatorAvatarURL}
		},
	}
}

// ArticleKind ingests articles. Excerpt and reading time are derived from
// the content unless supplied.
func ArticleKind() Kind[models.Article, *models.ArticlePatch] {
	return Kind[models.Article, *models.ArticlePatch]{
		Collection: Articles,
		Fields: []ingest.FieldSpec{
			{Name: "title", Kind: ingest.Text},
			{Name: "author", Kind: ingest.Text},
			{Name: "content", Kind: ingest.Text},
			{Name: "excerpt", Kind: ingest.Text},
			{Name: "coverImageUrl", Kind: ingest.Text},
			{Name: "tags", Kind: ingest.Tags},
			{Name: "readingTime", Kind: ingest.Int},
			{Name: "published", Kind: ingest.Bool},
		},
		Required: []string{"title"},
		Assets:   []Asset{{Field: "coverImage", Strategy: URL, URLField: "coverImageUrl"}},
		TagField: "tags",
		New: func(in Input) *models.Article {
			f := in.Fields
			a := &models.Article{
				Title:         val(text(f, "title")),
				Author:        f.TextOr("author", actorName(in)),
				Content:       val(text(f, "content")),
				CoverImageURL: val(assetRef(in, "coverImage", "coverImageUrl")),
				Tags:          tagsOrEmpty(f, "tags"),
				Published:     true,
			}
			if b, ok := f.Bool("published"); ok {
				a.Published = b
			}
			rt := richtext.Parse(a.Content)
			a.Excerpt = f.TextOr("excerpt", rt.Excerpt(richtext.ExcerptLength))
			if n := integer(f, "readingTime"); n != nil {
				a.ReadingTime = n
			} else {
				a.ReadingTime = ptr(rt.ReadingTime())
			}
			a.Touch(in.Now)
			return a
		},
		Patch: func(in Input, _ *models.Article) *models.ArticlePatch {
			f := in.Fields
			p := &models.ArticlePatch{
				Title:         text(f, "title"),
				Author:        nonBlank(f, "author"),
				Content:       text(f, "content"),
				Excerpt:       text(f, "excerpt"),
				CoverImageURL: assetRef(in, "coverImage", "coverImageUrl"),
				Tags:          tags(f, "tags"),
				ReadingTime:   integer(f, "readingTime"),
				Published:     boolean(f, "published"),
				UpdatedAt:     in.Now,
			}
			if p.Content != nil {
				rt := richtext.Parse(*p.Content)
				if p.Excerpt == nil {
					p.Excerpt = ptr(rt.Excerpt(richtext.ExcerptLength))
				}
				if p.ReadingTime == nil {
					p.ReadingTime = ptr(rt.ReadingTime())
				}
			}
			return p
		},
		Refs: func(a *models.Article) map[string]string {
			return map[string]string{"coverImage": a.CoverImageURL}
		},
	}
}

// PostKind ingests community posts. Authorship comes from the session and
// only the author may change or delete a post.
func PostKind() Kind[models.Post, *models.PostPatch] {
	return Kind[models.Post, *models.PostPatch]{
		Collection: Posts,
		Fields: []ingest.FieldSpec{
			{Name: "title", Kind: ingest.Text},
			{Name: "content", Kind: ingest.Text},
			{Name: "imageUrl", Kind: ingest.Text},
			{Name: "tags", Kind: ingest.Tags},
		},
		Required:     []string{"title"},
		Assets:       []Asset{{Field: "image", Strategy: URL, URLField: "imageUrl"}},
		TagField:     "tags",
		RequireActor: true,
		New: func(in Input) *models.Post {
			f := in.Fields
			p := &models.Post{
				Title:    val(text(f, "title")),
				Content:  val(text(f, "content")),
				ImageURL: val(assetRef(in, "image", "imageUrl")),
			}
			p.Tags = withHashtags(tagsOrEmpty(f, "tags"), p.Content)
			if in.Actor != nil {
				p.AuthorID = in.Actor.ID.Hex()
				p.AuthorName = in.Actor.Name
				p.AuthorAvatarURL = in.Actor.AvatarURL
			}
			p.Touch(in.Now)
			return p
		},
		Patch: func(in Input, existing *models.Post) *models.PostPatch {
			f := in.Fields
			p := &models.PostPatch{
				Title:     text(f, "title"),
				Content:   text(f, "content"),
				ImageURL:  assetRef(in, "image", "imageUrl"),
				UpdatedAt: in.Now,
			}
			if f.Has("tags") || f.Has("content") {
				base := existing.Tags
				if t := tags(f, "tags"); t != nil {
					base = *t
				}
				content := existing.Content
				if p.Content != nil {
					content = *p.Content
				}
				merged := withHashtags(base, content)
				p.Tags = &merged
			}
			return p
		},
		Refs: func(p *models.Post) map[string]string {
			return map[string]string{"image": p.ImageURL}
		},
		Owner: func(p *models.Post) string { return p.AuthorID },
	}
}

// CuratedKind ingests curated external content.
func CuratedKind() Kind[models.Curated, *models.CuratedPatch] {
	return Kind[models.Curated, *models.CuratedPatch]{
		Collection: Curated,
		Fields: []ingest.FieldSpec{
			{Name: "title", Kind: ingest.Text},
			{Name: "description", Kind: ingest.Text},
			{Name: "sourceUrl", Kind: ingest.Text},
			{Name: "sourceName", Kind: ingest.Text},
			{Name: "curatorName", Kind: ingest.Text},
			{Name: "thumbnailUrl", Kind: ingest.Text},
			{Name: "category", Kind: ingest.Text},
			{Name: "tags", Kind: ingest.Tags},
		},
		Required: []string{"title"},
		Assets:   []Asset{{Field: "thumbnail", Strategy: URL, URLField: "thumbnailUrl"}},
		TagField: "tags",
		New: func(in Input) *models.Curated {
			f := in.Fields
			c := &models.Curated{
				Title:        val(text(f, "title")),
				Description:  val(text(f, "description")),
				SourceURL:    val(text(f, "sourceUrl")),
				SourceName:   val(text(f, "sourceName")),
				CuratorName:  f.TextOr("curatorName", actorName(in)),
				ThumbnailURL: val(assetRef(in, "thumbnail", "thumbnailUrl")),
				Category:     val(text(f, "category")),
				Tags:         tagsOrEmpty(f, "tags"),
			}
			c.Touch(in.Now)
			return c
		},
		Patch: func(in Input, _ *models.Curated) *models.CuratedPatch {
			f := in.Fields
			return &models.CuratedPatch{
				Title:        text(f, "title"),
				Description:  text(f, "description"),
				SourceURL:    text(f, "sourceUrl"),
				SourceName:   text(f, "sourceName"),
				CuratorName:  nonBlank(f, "curatorName"),
				ThumbnailURL: assetRef(in, "thumbnail", "thumbnailUrl"),
				Category:     text(f, "category"),
				Tags:         tags(f, "tags"),
				UpdatedAt:    in.Now,
			}
		},
		Refs: func(c *models.Curated) map[string]string {
			return map[string]string{"thumbnail": c.ThumbnailURL}
		},
	}
}

// UserKind handles account profile updates and deletion. Accounts are
// created by sign-up, never through the ingestion path.
func UserKind() Kind[models.User, *models.UserPatch] {
	return Kind[models.User, *models.UserPatch]{
		Collection: Users,
		Fields: []ingest.FieldSpec{
			{Name: "name", Kind: ingest.Text},
			{Name: "bio", Kind: ingest.Text},
			{Name: "avatarUrl", Kind: ingest.Text},
		},
		Required: []string{"name"},
		Assets:   []Asset{{Field: "avatar", Strategy: URL, URLField: "avatarUrl"}},
		Patch: func(in Input, _ *models.User) *models.UserPatch {
			f := in.Fields
			return &models.UserPatch{
				Name:      text(f, "name"),
				Bio:       text(f, "bio"),
				AvatarURL: assetRef(in, "avatar", "avatarUrl"),
				UpdatedAt: in.Now,
			}
		},
		Refs: func(u *models.User) map[string]string {
			return map[string]string{"avatar": u.AvatarURL}
		},
		Owner: func(u *models.User) string { return u.ID.Hex() },
		Validate: func(u *models.User) error {
			if len(u.Bio) > 2000 {
				return apperr.Validation("bio is limited to 2000 characters")
			}
			return nil
		},
	}
}

func ptr[T any](v T) *T { return &v }

func val(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func text(f ingest.Fields, name string) *string {
	if s, ok := f.Text(name); ok {
		return &s
	}
	return nil
}

// nonBlank is text for attribution fields, where an empty value would
// erase the credit; blank input leaves the stored value alone.
func nonBlank(f ingest.Fields, name string) *string {
	if s := f.TextOr(name, ""); s != "" {
		return &s
	}
	return nil
}

func integer(f ingest.Fields, name string) *int {
	if n, ok := f.Int(name); ok {
		return &n
	}
	return nil
}

func boolean(f ingest.Fields, name string) *bool {
	if b, ok := f.Bool(name); ok {
		return &b
	}
	return nil
}

func tags(f ingest.Fields, name string) *[]string {
	if t, ok := f.Tags(name); ok {
		return &t
	}
	return nil
}

func tagsOrEmpty(f ingest.Fields, name string) []string {
	if t, ok := f.Tags(name); ok {
		return t
	}
	return []string{}
}

// assetRef prefers a blob stored by this request over a directly supplied
// URL field.
func assetRef(in Input, asset, urlField string) *string {
	if ref, ok := in.Refs[asset]; ok {
		return &ref
	}
	return text(in.Fields, urlField)
}

func actorName(in Input) string {
	if in.Actor != nil && in.Actor.Name != "" {
		return in.Actor.Name
	}
	return models.AnonymousUser
}

func withHashtags(base []string, content string) []string {
	return ingest.SplitTags(append(append([]string{}, base...), richtext.Parse(content).Tags...)...)
}

type chapterIn struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   *int   `json:"order"`
}

// chapters decodes the chapters field; missing order values follow array
// position so that stored order always matches presentation order.
func chapters(f ingest.Fields) []models.Chapter {
	var in []chapterIn
	if !f.Decode("chapters", &in) {
		return []models.Chapter{}
	}
	out := make([]models.Chapter, 0, len(in))
	for i, c := range in {
		order := i + 1
		if c.Order != nil {
			order = *c.Order
		}
		out = append(out, models.Chapter{Title: c.Title, Content: c.Content, Order: order})
	}
	return out
}

func keyTerms(f ingest.Fields) []models.KeyTerm {
	var out []models.KeyTerm
	if !f.Decode("keyTerms", &out) || out == nil {
		return []models.KeyTerm{}
	}
	return out
}
