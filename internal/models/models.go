// Package models defines the domain types for Insighthink.
//
// Every document carries matching bson and json names so the same struct can
// be stored in MongoDB or in the SQLite document store. Patch types hold
// pointer fields: a nil field means "not supplied" and is never written.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnonymousUser is the attribution used when no creator name is supplied.
const AnonymousUser = "Anonymous User"

// FilesPrefix is the URL prefix of blobs served by this service. Asset URLs
// starting with it are owned by their document.
const FilesPrefix = "/api/files/"

// FileURL returns the served URL for a blob id.
func FileURL(blobID string) string { return FilesPrefix + blobID }

// OwnedBlob reports the blob id behind an asset URL written by this service.
func OwnedBlob(ref string) (string, bool) {
	if len(ref) <= len(FilesPrefix) || ref[:len(FilesPrefix)] != FilesPrefix {
		return "", false
	}
	return ref[len(FilesPrefix):], true
}

// Chapter is an ordered section of a book.
type Chapter struct {
	Title   string `bson:"title" json:"title"`
	Content string `bson:"content" json:"content"`
	Order   int    `bson:"order" json:"order"`
}

// KeyTerm is a glossary entry of a book.
type KeyTerm struct {
	Term       string `bson:"term" json:"term"`
	Definition string `bson:"definition" json:"definition"`
}

// Stats are the counters shared by every content type.
type Stats struct {
	Likes int `bson:"likes" json:"likes"`
	Views int `bson:"views" json:"views"`
}

// Timestamps are set by the service; CreatedAt never changes after insert.
type Timestamps struct {
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Touch stamps a new document with now.
func (t *Timestamps) Touch(now time.Time) {
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Book is a library entry.
type Book struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Author        string             `bson:"author" json:"author"`
	Description   string             `bson:"description" json:"description"`
	Content       string             `bson:"content" json:"content"`
	Genres        []string           `bson:"genres" json:"genres"`
	PageCount     *int               `bson:"pageCount,omitempty" json:"pageCount,omitempty"`
	ReadingTime   *int               `bson:"readingTime,omitempty" json:"readingTime,omitempty"`
	PublishedYear *int               `bson:"publishedYear,omitempty" json:"publishedYear,omitempty"`
	ISBN          string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Language      string             `bson:"language,omitempty" json:"language,omitempty"`
	CoverImageID  string             `bson:"coverImageId" json:"coverImageId"`
	HasCover      bool               `bson:"hasCover" json:"hasCover"`
	Chapters      []Chapter          `bson:"chapters" json:"chapters"`
	KeyTerms      []KeyTerm          `bson:"keyTerms" json:"keyTerms"`
	Stats         `bson:",inline"`
	Timestamps    `bson:",inline"`
}

// BookPatch is a partial update of a Book.
type BookPatch struct {
	Title         *string    `bson:"title,omitempty" json:"title,omitempty"`
	Author        *string    `bson:"author,omitempty" json:"author,omitempty"`
	Description   *string    `bson:"description,omitempty" json:"description,omitempty"`
	Content       *string    `bson:"content,omitempty" json:"content,omitempty"`
	Genres        *[]string  `bson:"genres,omitempty" json:"genres,omitempty"`
	PageCount     *int       `bson:"pageCount,omitempty" json:"pageCount,omitempty"`
	ReadingTime   *int       `bson:"readingTime,omitempty" json:"readingTime,omitempty"`
	PublishedYear *int       `bson:"publishedYear,omitempty" json:"publishedYear,omitempty"`
	ISBN          *string    `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Language      *string    `bson:"language,omitempty" json:"language,omitempty"`
	CoverImageID  *string    `bson:"coverImageId,omitempty" json:"coverImageId,omitempty"`
	HasCover      *bool      `bson:"hasCover,omitempty" json:"hasCover,omitempty"`
	Chapters      *[]Chapter `bson:"chapters,omitempty" json:"chapters,omitempty"`
	KeyTerms      *[]KeyTerm `bson:"keyTerms,omitempty" json:"keyTerms,omitempty"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Apply merges the supplied fields onto b.
func (p *BookPatch) Apply(b *Book) {
	set(&b.Title, p.Title)
	set(&b.Author, p.Author)
	set(&b.Description, p.Description)
	set(&b.Content, p.Content)
	set(&b.Genres, p.Genres)
	setPtr(&b.PageCount, p.PageCount)
	setPtr(&b.ReadingTime, p.ReadingTime)
	setPtr(&b.PublishedYear, p.PublishedYear)
	set(&b.ISBN, p.ISBN)
	set(&b.Language, p.Language)
	set(&b.CoverImageID, p.CoverImageID)
	set(&b.HasCover, p.HasCover)
	set(&b.Chapters, p.Chapters)
	set(&b.KeyTerms, p.KeyTerms)
	b.UpdatedAt = p.UpdatedAt
}

// Video is an embedded video entry.
type Video struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title            string             `bson:"title" json:"title"`
	Description      string             `bson:"description" json:"description"`
	EmbedURL         string             `bson:"embedUrl" json:"embedUrl"`
	ThumbnailURL     string             `bson:"thumbnailUrl" json:"thumbnailUrl"`
	CreatorName      string             `bson:"creatorName" json:"creatorName"`
	CreatorAvatarURL string             `bson:"creatorAvatarUrl" json:"creatorAvatarUrl"`
	Category         string             `bson:"category,omitempty" json:"category,omitempty"`
	Tags             []string           `bson:"tags" json:"tags"`
	Duration         *int               `bson:"duration,omitempty" json:"duration,omitempty"`
	Stats            `bson:",inline"`
	Timestamps       `bson:",inline"`
}

// VideoPatch is a partial update of a Video.
type VideoPatch struct {
	Title            *string   `bson:"title,omitempty" json:"title,omitempty"`
	Description      *string   `bson:"description,omitempty" json:"description,omitempty"`
	EmbedURL         *string   `bson:"embedUrl,omitempty" json:"embedUrl,omitempty"`
	ThumbnailURL     *string   `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
	CreatorName      *string   `bson:"creatorName,omitempty" json:"creatorName,omitempty"`
	CreatorAvatarURL *string   `bson:"creatorAvatarUrl,omitempty" json:"creatorAvatarUrl,omitempty"`
	Category         *string   `bson:"category,omitempty" json:"category,omitempty"`
	Tags             *[]string `bson:"tags,omitempty" json:"tags,omitempty"`
	Duration         *int      `bson:"duration,omitempty" json:"duration,omitempty"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Apply merges the supplied fields onto v.
func (p *VideoPatch) Apply(v *Video) {
	set(&v.Title, p.Title)
	set(&v.Description, p.Description)
	set(&v.EmbedURL, p.EmbedURL)
	set(&v.ThumbnailURL, p.ThumbnailURL)
	set(&v.CreatorName, p.CreatorName)
	set(&v.CreatorAvatarURL, p.CreatorAvatarURL)
	set(&v.Category, p.Category)
	set(&v.Tags, p.Tags)
	setPtr(&v.Duration, p.Duration)
	v.UpdatedAt = p.UpdatedAt
}

// Article is a long-form post.
type Article struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Author        string             `bson:"author" json:"author"`
	Content       string             `bson:"content" json:"content"`
	Excerpt       string             `bson:"excerpt" json:"excerpt"`
	CoverImageURL string             `bson:"coverImageUrl" json:"coverImageUrl"`
	Tags          []string           `bson:"tags" json:"tags"`
	ReadingTime   *int               `bson:"readingTime,omitempty" json:"readingTime,omitempty"`
	Published     bool               `bson:"published" json:"published"`
	Stats         `bson:",inline"`
	Timestamps    `bson:",inline"`
}

// ArticlePatch is a partial update of an Article.
type ArticlePatch struct {
	Title         *string   `bson:"title,omitempty" json:"title,omitempty"`
	Author        *string   `bson:"author,omitempty" json:"author,omitempty"`
	Content       *string   `bson:"content,omitempty" json:"content,omitempty"`
	Excerpt       *string   `bson:"excerpt,omitempty" json:"excerpt,omitempty"`
	CoverImageURL *string   `bson:"coverImageUrl,omitempty" json:"coverImageUrl,omitempty"`
	Tags          *[]string `bson:"tags,omitempty" json:"tags,omitempty"`
	ReadingTime   *int      `bson:"readingTime,omitempty" json:"readingTime,omitempty"`
	Published     *bool     `bson:"published,omitempty" json:"published,omitempty"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Apply merges the supplied fields onto a.
func (p *ArticlePatch) Apply(a *Article) {
	set(&a.Title, p.Title)
	set(&a.Author, p.Author)
	set(&a.Content, p.Content)
	set(&a.Excerpt, p.Excerpt)
	set(&a.CoverImageURL, p.CoverImageURL)
	set(&a.Tags, p.Tags)
	setPtr(&a.ReadingTime, p.ReadingTime)
	set(&a.Published, p.Published)
	a.UpdatedAt = p.UpdatedAt
}

// Post is a community post. Only its author may change or remove it.
type Post struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	Content         string             `bson:"content" json:"content"`
	AuthorID        string             `bson:"authorId" json:"authorId"`
	AuthorName      string             `bson:"authorName" json:"authorName"`
	AuthorAvatarURL string             `bson:"authorAvatarUrl" json:"authorAvatarUrl"`
	ImageURL        string             `bson:"imageUrl" json:"imageUrl"`
	Tags            []string           `bson:"tags" json:"tags"`
	Stats           `bson:",inline"`
	Timestamps      `bson:",inline"`
}

// PostPatch is a partial update of a Post. Authorship is never patched.
type PostPatch struct {
	Title     *string   `bson:"title,omitempty" json:"title,omitempty"`
	Content   *string   `bson:"content,omitempty" json:"content,omitempty"`
	ImageURL  *string   `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Tags      *[]string `bson:"tags,omitempty" json:"tags,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Apply merges the supplied fields onto p.
func (p *PostPatch) Apply(post *Post) {
	set(&post.Title, p.Title)
	set(&post.Content, p.Content)
	set(&post.ImageURL, p.ImageURL)
	set(&post.Tags, p.Tags)
	post.UpdatedAt = p.UpdatedAt
}

// Curated is an externally sourced item picked by a curator.
type Curated struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	SourceURL    string             `bson:"sourceUrl" json:"sourceUrl"`
	SourceName   string             `bson:"sourceName" json:"sourceName"`
	CuratorName  string             `bson:"curatorName" json:"curatorName"`
	ThumbnailURL string             `bson:"thumbnailUrl" json:"thumbnailUrl"`
	Category     string             `bson:"category,omitempty" json:"category,omitempty"`
	Tags         []string           `bson:"tags" json:"tags"`
	Stats        `bson:",inline"`
	Timestamps   `bson:",inline"`
}

// CuratedPatch is a partial update of a Curated item.
type CuratedPatch struct {
	Title        *string   `bson:"title,omitempty" json:"title,omitempty"`
	Description  *string   `bson:"description,omitempty" json:"description,omitempty"`
	SourceURL    *string   `bson:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
	SourceName   *string   `bson:"sourceName,omitempty" json:"sourceName,omitempty"`
	CuratorName  *string   `bson:"curatorName,omitempty" json:"curatorName,omitempty"`
	ThumbnailURL *string   `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
	Category     *string   `bson:"category,omitempty" json:"category,omitempty"`
	Tags         *[]string `bson:"tags,omitempty" json:"tags,omitempty"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Apply merges the supplied fields onto c.
func (p *CuratedPatch) Apply(c *Curated) {
	set(&c.Title, p.Title)
	set(&c.Description, p.Description)
	set(&c.SourceURL, p.SourceURL)
	set(&c.SourceName, p.SourceName)
	set(&c.CuratorName, p.CuratorName)
	set(&c.ThumbnailURL, p.ThumbnailURL)
	set(&c.Category, p.Category)
	set(&c.Tags, p.Tags)
	c.UpdatedAt = p.UpdatedAt
}

// User is an account. PasswordHash is persisted with the document; use Public
// before handing a user to a client.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"passwordHash,omitempty"`
	AvatarURL    string             `bson:"avatarUrl" json:"avatarUrl"`
	Bio          string             `bson:"bio" json:"bio"`
	Timestamps   `bson:",inline"`
}

// Public returns the user without credentials, safe to send to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// UserPatch is a partial update of a User.
type UserPatch struct {
	Name         *string   `bson:"name,omitempty" json:"name,omitempty"`
	PasswordHash *string   `bson:"passwordHash,omitempty" json:"passwordHash,omitempty"`
	AvatarURL    *string   `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	Bio          *string   `bson:"bio,omitempty" json:"bio,omitempty"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Apply merges the supplied fields onto u.
func (p *UserPatch) Apply(u *User) {
	set(&u.Name, p.Name)
	set(&u.PasswordHash, p.PasswordHash)
	set(&u.AvatarURL, p.AvatarURL)
	set(&u.Bio, p.Bio)
	u.UpdatedAt = p.UpdatedAt
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setPtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
