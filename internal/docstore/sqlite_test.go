package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starford/insighthink/internal/apperr"
)

type testDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Tags      []string           `bson:"tags" json:"tags"`
	Likes     int                `bson:"likes" json:"likes"`
	Published bool               `bson:"published" json:"published"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type testPatch struct {
	Title *string `bson:"title,omitempty" json:"title,omitempty"`
	Likes *int    `bson:"likes,omitempty" json:"likes,omitempty"`
}

func testStore(t *testing.T) Collection {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.db"), "items")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s.Collection("items")
}

func TestSQLiteInsertFind(t *testing.T) {
	c := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	id, err := c.InsertOne(ctx, testDoc{Title: "Dune", Tags: []string{"scifi"}, CreatedAt: now})
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	var got testDoc
	require.NoError(t, c.FindOne(ctx, id, &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Dune", got.Title)
	assert.True(t, now.Equal(got.CreatedAt))
}

func TestSQLiteFindOneMissing(t *testing.T) {
	c := testStore(t)
	var got testDoc
	err := c.FindOne(context.Background(), primitive.NewObjectID(), &got)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSQLiteUpdateMergesOnlySetFields(t *testing.T) {
	c := testStore(t)
	ctx := context.Background()
	id, err := c.InsertOne(ctx, testDoc{Title: "Old", Tags: []string{"a"}, Likes: 3})
	require.NoError(t, err)

	title := "New"
	require.NoError(t, c.UpdateOne(ctx, id, testPatch{Title: &title}))

	var got testDoc
	require.NoError(t, c.FindOne(ctx, id, &got))
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, 3, got.Likes)
	assert.Equal(t, []string{"a"}, got.Tags)

	err = c.UpdateOne(ctx, primitive.NewObjectID(), testPatch{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSQLiteIncrement(t *testing.T) {
	c := testStore(t)
	ctx := context.Background()
	id, err := c.InsertOne(ctx, testDoc{Title: "x", Likes: 1})
	require.NoError(t, err)

	require.NoError(t, c.Increment(ctx, id, "likes", 2))
	require.NoError(t, c.Increment(ctx, id, "views", 1))

	var got map[string]any
	require.NoError(t, c.FindOne(ctx, id, &got))
	assert.EqualValues(t, 3, got["likes"])
	assert.EqualValues(t, 1, got["views"])

	assert.ErrorIs(t, c.Increment(ctx, id, "likes; DROP", 1), apperr.ErrValidation)
}

func TestSQLiteFindPagingAndFilters(t *testing.T) {
	c := testStore(t)
	ctx := context.Background()
	for _, d := range []testDoc{
		{Title: "Alpha", Tags: []string{"go"}, Published: true},
		{Title: "Beta", Tags: []string{"rust"}},
		{Title: "Gamma 100%", Tags: []string{"go", "db"}, Published: true},
	} {
		_, err := c.InsertOne(ctx, d)
		require.NoError(t, err)
	}

	var all []testDoc
	require.NoError(t, c.Find(ctx, Query{}, &all))
	require.Len(t, all, 3)
	assert.Equal(t, "Gamma 100%", all[0].Title, "newest first")

	var page []testDoc
	require.NoError(t, c.Find(ctx, Query{Skip: 1, Limit: 1}, &page))
	require.Len(t, page, 1)
	assert.Equal(t, "Beta", page[0].Title)

	var tagged []testDoc
	require.NoError(t, c.Find(ctx, Query{Contains: map[string]string{"tags": "go"}}, &tagged))
	assert.Len(t, tagged, 2)

	n, err := c.Count(ctx, Query{Filter: map[string]any{"published": true}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = c.Count(ctx, Query{Search: "100%"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var one testDoc
	require.NoError(t, c.FindOneBy(ctx, Query{Filter: map[string]any{"title": "Beta"}}, &one))
	assert.Equal(t, "Beta", one.Title)
}

func TestSQLiteDelete(t *testing.T) {
	c := testStore(t)
	ctx := context.Background()
	id, err := c.InsertOne(ctx, testDoc{Title: "gone"})
	require.NoError(t, err)

	require.NoError(t, c.DeleteOne(ctx, id))
	assert.ErrorIs(t, c.DeleteOne(ctx, id), apperr.ErrNotFound)
}

func TestParseID(t *testing.T) {
	_, err := ParseID("abc")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ParseID("zzzzzzzzzzzzzzzzzzzzzzzz")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	want := primitive.NewObjectID()
	got, err := ParseID(want.Hex())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOpenSQLiteRejectsBadCollectionName(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), "items; DROP TABLE x")
	assert.Error(t, err)
}

func TestObserveReportsOperations(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "obs.db"), "items")
	require.NoError(t, err)
	defer s.Close(context.Background())

	var ops []string
	obs := Observe(s, func(collection, op string, _ time.Duration, _ error) {
		ops = append(ops, collection+"."+op)
	})
	c := obs.Collection("items")
	id, err := c.InsertOne(context.Background(), testDoc{Title: "x"})
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, c.FindOne(context.Background(), id, &got))

	assert.Equal(t, []string{"items.insertOne", "items.findOne"}, ops)
}
