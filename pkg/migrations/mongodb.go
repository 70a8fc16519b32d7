package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the indexes the pipeline queries rely on.
// Safe to call on every startup.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	commentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_comments_client_status"),
		},
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_comments_client_created"),
		},
		{
			Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_comments_platform_created"),
		},
	}

	if err := createIndexes(ctx, db.Collection("comments"), commentIndexes); err != nil {
		return fmt.Errorf("comments indexes: %w", err)
	}

	configIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "config_type", Value: 1}},
			Options: options.Index().SetName("idx_client_configs_client_type").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "config_type", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_client_configs_type_active"),
		},
	}

	if err := createIndexes(ctx, db.Collection("client_configs"), configIndexes); err != nil {
		return fmt.Errorf("client_configs indexes: %w", err)
	}

	return nil
}

func createIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}
