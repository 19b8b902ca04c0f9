package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Observe wraps s so that every collection operation is reported to obs.
func Observe(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observedStore{Store: s, obs: obs}
}

type observedStore struct {
	Store
	obs Observer
}

func (s *observedStore) Collection(name string) Collection {
	return &observedCollection{c: s.Store.Collection(name), obs: s.obs}
}

type observedCollection struct {
	c   Collection
	obs Observer
}

func (o *observedCollection) track(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.obs(o.c.Name(), op, time.Since(start), err)
	return err
}

func (o *observedCollection) Name() string { return o.c.Name() }

func (o *observedCollection) FindOne(ctx context.Context, id primitive.ObjectID, out any) error {
	return o.track("findOne", func() error { return o.c.FindOne(ctx, id, out) })
}

func (o *observedCollection) FindOneBy(ctx context.Context, q Query, out any) error {
	return o.track("findOneBy", func() error { return o.c.FindOneBy(ctx, q, out) })
}

func (o *observedCollection) InsertOne(ctx context.Context, doc any) (primitive.ObjectID, error) {
	var id primitive.ObjectID
	err := o.track("insertOne", func() (err error) {
		id, err = o.c.InsertOne(ctx, doc)
		return err
	})
	return id, err
}

func (o *observedCollection) UpdateOne(ctx context.Context, id primitive.ObjectID, set any) error {
	return o.track("updateOne", func() error { return o.c.UpdateOne(ctx, id, set) })
}

func (o *observedCollection) Increment(ctx context.Context, id primitive.ObjectID, field string, delta int) error {
	return o.track("increment", func() error { return o.c.Increment(ctx, id, field, delta) })
}

func (o *observedCollection) DeleteOne(ctx context.Context, id primitive.ObjectID) error {
	return o.track("deleteOne", func() error { return o.c.DeleteOne(ctx, id) })
}

func (o *observedCollection) Find(ctx context.Context, q Query, out any) error {
	return o.track("find", func() error { return o.c.Find(ctx, q, out) })
}

func (o *observedCollection) Count(ctx context.Context, q Query) (int64, error) {
	var n int64
	err := o.track("count", func() (err error) {
		n, err = o.c.Count(ctx, q)
		return err
	})
	return n, err
}
