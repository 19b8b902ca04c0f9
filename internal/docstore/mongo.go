package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/starford/insighthink/internal/apperr"
)

// Mongo is a Store backed by a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to uri and verifies the connection. The client pools
// its own connections, so one Mongo is shared by every request.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

// Database exposes the underlying database for GridFS.
func (m *Mongo) Database() *mongo.Database {
	return m.db
}

// Collection returns the named collection.
func (m *Mongo) Collection(name string) Collection {
	return &mongoCollection{c: m.db.Collection(name)}
}

// Ping checks the server is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoCollection struct {
	c *mongo.Collection
}

func (mc *mongoCollection) Name() string { return mc.c.Name() }

func (mc *mongoCollection) FindOne(ctx context.Context, id primitive.ObjectID, out any) error {
	err := mc.c.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errNoDocument()
	}
	return apperr.Storage("docstore.findOne "+mc.Name(), err)
}

func (mc *mongoCollection) FindOneBy(ctx context.Context, q Query, out any) error {
	err := mc.c.FindOne(ctx, mongoFilter(q)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errNoDocument()
	}
	return apperr.Storage("docstore.findOneBy "+mc.Name(), err)
}

func (mc *mongoCollection) InsertOne(ctx context.Context, doc any) (primitive.ObjectID, error) {
	res, err := mc.c.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, apperr.Storage("docstore.insertOne "+mc.Name(), err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, apperr.Storage("docstore.insertOne "+mc.Name(),
			fmt.Errorf("unexpected id type %T", res.InsertedID))
	}
	return id, nil
}

func (mc *mongoCollection) UpdateOne(ctx context.Context, id primitive.ObjectID, set any) error {
	res, err := mc.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return apperr.Storage("docstore.updateOne "+mc.Name(), err)
	}
	if res.MatchedCount == 0 {
		return errNoDocument()
	}
	return nil
}

func (mc *mongoCollection) Increment(ctx context.Context, id primitive.ObjectID, field string, delta int) error {
	if !fieldNameRe.MatchString(field) {
		return apperr.Validation("invalid field %q", field)
	}
	res, err := mc.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return apperr.Storage("docstore.increment "+mc.Name(), err)
	}
	if res.MatchedCount == 0 {
		return errNoDocument()
	}
	return nil
}

func (mc *mongoCollection) DeleteOne(ctx context.Context, id primitive.ObjectID) error {
	res, err := mc.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Storage("docstore.deleteOne "+mc.Name(), err)
	}
	if res.DeletedCount == 0 {
		return errNoDocument()
	}
	return nil
}

func (mc *mongoCollection) Find(ctx context.Context, q Query, out any) error {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cur, err := mc.c.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return apperr.Storage("docstore.find "+mc.Name(), err)
	}
	return apperr.Storage("docstore.find "+mc.Name(), cur.All(ctx, out))
}

func (mc *mongoCollection) Count(ctx context.Context, q Query) (int64, error) {
	n, err := mc.c.CountDocuments(ctx, mongoFilter(q))
	if err != nil {
		return 0, apperr.Storage("docstore.count "+mc.Name(), err)
	}
	return n, nil
}

func mongoFilter(q Query) bson.M {
	filter := bson.M{}
	for k, v := range q.Filter {
		filter[k] = v
	}
	// A scalar equality match on an array field tests membership.
	for k, v := range q.Contains {
		filter[k] = v
	}
	if q.Search != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
	}
	return filter
}
