package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(ctx, client, cfg.DBName, cfg.ChaptersCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// createIndexes adds the regular b-tree indexes that back tenant-scoped
// listing and deletion. Atlas Search indexes are managed separately.
func createIndexes(ctx context.Context, client *mongo.Client, dbName, collection string) error {
	chapters := client.Database(dbName).Collection(collection)
	chapterIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenantId", Value: 1}}},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "fileName", Value: 1}}},
		{Keys: bson.D{{Key: "chapterId", Value: 1}}},
	}
	_, err := chapters.Indexes().CreateMany(ctx, chapterIndexes)
	return err
}
