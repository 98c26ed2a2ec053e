package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoProvider implements Provider on a MongoDB database. One client
// is shared per process and reused across all tasks.
type MongoProvider struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoProvider connects to uri and pings the deployment to ensure
// it is alive before any task starts.
func NewMongoProvider(ctx context.Context, uri, database string, connectTimeout time.Duration, logger *zap.Logger) (*MongoProvider, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if derr := client.Disconnect(ctx); derr != nil {
			logger.Error("disconnect after failed ping", zap.Error(derr))
		}
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoProvider{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// FindOne returns the first matching document or nil.
func (p *MongoProvider) FindOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error) {
	var doc bson.M
	err := p.db.Collection(collection).FindOne(ctx, bson.M(query)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	return doc, nil
}

// UpsertIfAbsent performs a find-then-insert guarded by a unique index
// on uniqueField. The index is sparse so historical documents without
// the key can coexist with the constraint.
func (p *MongoProvider) UpsertIfAbsent(ctx context.Context, collection string, doc map[string]any, uniqueField string) (string, error) {
	coll := p.db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: uniqueField, Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return "", fmt.Errorf("ensure %s index on %s: %w", uniqueField, collection, err)
	}

	var existing bson.M
	err = coll.FindOne(ctx, bson.M{uniqueField: doc[uniqueField]}).Decode(&existing)
	switch {
	case err == nil:
		return formatID(existing["_id"]), nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return "", fmt.Errorf("lookup %s in %s: %w", uniqueField, collection, err)
	}

	now := time.Now().UTC()
	if _, ok := doc["created_at"]; !ok {
		doc["created_at"] = now
	}
	if _, ok := doc["updated_at"]; !ok {
		doc["updated_at"] = now
	}
	res, err := coll.InsertOne(ctx, bson.M(doc))
	if mongo.IsDuplicateKeyError(err) {
		// Lost a race against a concurrent writer; the winner's document
		// serves just as well.
		if ferr := coll.FindOne(ctx, bson.M{uniqueField: doc[uniqueField]}).Decode(&existing); ferr == nil {
			return formatID(existing["_id"]), nil
		}
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return formatID(res.InsertedID), nil
}

// UpdateOne applies set to the first match of query, always refreshing
// updated_at.
func (p *MongoProvider) UpdateOne(ctx context.Context, collection string, query map[string]any, set map[string]any) (bool, error) {
	fields := bson.M{}
	for k, v := range set {
		fields[k] = v
	}
	fields["updated_at"] = time.Now().UTC()
	res, err := p.db.Collection(collection).UpdateOne(ctx, bson.M(query), bson.M{"$set": fields})
	if err != nil {
		return false, fmt.Errorf("update in %s: %w", collection, err)
	}
	return res.ModifiedCount > 0, nil
}

// Ping verifies the connection is still healthy.
func (p *MongoProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// Close disconnects the shared client.
func (p *MongoProvider) Close(ctx context.Context) error {
	if err := p.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func formatID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
