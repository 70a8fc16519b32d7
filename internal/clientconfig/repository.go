package clientconfig

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sentinel/internal/constants"
	"sentinel/pkg/errors"
)

type Repository interface {
	Get(ctx context.Context, clientID, configType string) (*ClientConfig, error)
	Upsert(ctx context.Context, cfg *ClientConfig) error
	// ListActiveClients returns client IDs that have an active config of
	// the given type.
	ListActiveClients(ctx context.Context, configType string) ([]string, error)
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &MongoDBRepository{
		collection: db.Collection(constants.CollectionClientConfigs),
	}
}

func (r *MongoDBRepository) Get(ctx context.Context, clientID, configType string) (*ClientConfig, error) {
	filter := bson.M{
		"client_id":   clientID,
		"config_type": configType,
		"active":      true,
	}

	var cfg ClientConfig
	err := r.collection.FindOne(ctx, filter).Decode(&cfg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrNotFound.
				WithDetail("client_id", clientID).
				WithDetail("config_type", configType)
		}
		return nil, fmt.Errorf("failed to find client config: %w", err)
	}

	return &cfg, nil
}

func (r *MongoDBRepository) Upsert(ctx context.Context, cfg *ClientConfig) error {
	filter := bson.M{
		"client_id":   cfg.ClientID,
		"config_type": cfg.ConfigType,
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"data":       cfg.Data,
			"active":     cfg.Active,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"client_id":   cfg.ClientID,
			"config_type": cfg.ConfigType,
			"created_at":  now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert client config: %w", err)
	}

	return nil
}

func (r *MongoDBRepository) ListActiveClients(ctx context.Context, configType string) ([]string, error) {
	filter := bson.M{
		"config_type": configType,
		"active":      true,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"client_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list client configs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ClientID string `bson:"client_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode client configs: %w", err)
	}

	clients := make([]string, 0, len(docs))
	for _, doc := range docs {
		clients = append(clients, doc.ClientID)
	}

	return clients, nil
}
