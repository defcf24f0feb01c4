package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/avkuzmin/techharvest/internal/config"
	"github.com/avkuzmin/techharvest/internal/types"
)

// MongoStore persists product documents in a MongoDB collection, keyed by
// content ID in _id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and pings the deployment.
func NewMongoStore(ctx context.Context, cfg *config.StoreConfig, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StoreError{Backend: "mongo", Err: fmt.Errorf("ping: %w", err)}
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With("component", "mongo_store"),
	}

	s.logger.Info("connected to mongodb", "database", cfg.Database, "collection", cfg.Collection)
	return s, nil
}

func (s *MongoStore) Upsert(ctx context.Context, doc *types.ProductDocument) error {
	Prepare(doc)

	var prev struct {
		Revision int `bson:"revision"`
	}
	err := s.collection.FindOne(ctx, bson.M{"_id": doc.ID},
		options.FindOne().SetProjection(bson.M{"revision": 1})).Decode(&prev)
	switch {
	case err == nil:
		doc.Revision = prev.Revision + 1
	case errors.Is(err, mongo.ErrNoDocuments):
		doc.Revision = 1
	default:
		return &types.StoreError{Backend: "mongo", Err: fmt.Errorf("read revision %s: %w", doc.ID, err)}
	}

	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StoreError{Backend: "mongo", Err: fmt.Errorf("upsert %s: %w", doc.ID, err)}
	}

	s.logger.Debug("document upserted", "id", doc.ID, "revision", doc.Revision, "reviews", doc.TotalReviews)
	return nil
}

func (s *MongoStore) Exists(ctx context.Context, id string) (bool, error) {
	err := s.collection.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, &types.StoreError{Backend: "mongo", Err: fmt.Errorf("exists %s: %w", id, err)}
}

func (s *MongoStore) ScanAll(ctx context.Context, fn func(*types.ProductDocument) error) error {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return &types.StoreError{Backend: "mongo", Err: fmt.Errorf("find: %w", err)}
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc types.ProductDocument
		if err := cursor.Decode(&doc); err != nil {
			return &types.StoreError{Backend: "mongo", Err: fmt.Errorf("decode: %w", err)}
		}
		if err := fn(&doc); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return &types.StoreError{Backend: "mongo", Err: fmt.Errorf("cursor: %w", err)}
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, &types.StoreError{Backend: "mongo", Err: fmt.Errorf("count: %w", err)}
	}
	return n, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context) error {
	res, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return &types.StoreError{Backend: "mongo", Err: fmt.Errorf("delete all: %w", err)}
	}
	s.logger.Info("collection cleared", "deleted", res.DeletedCount)
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
