package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the Mongo repositories.
const (
	UsersCollection = "users"
	TasksCollection = "tasks"
)

// NewMongo connects to MongoDB, pings the server and ensures indexes exist.
func NewMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	mdb := client.Database(database)
	if err := ensureMongoIndexes(connectCtx, mdb); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return mdb, nil
}

func ensureMongoIndexes(ctx context.Context, mdb *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := mdb.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	tasks := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_username", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "subtasks.id", Value: 1}}},
	}
	if _, err := mdb.Collection(TasksCollection).Indexes().CreateMany(ctx, tasks); err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}
