package comment

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

type ListFilter struct {
	ClientID  string
	Platform  string
	Status    string
	Sentiment string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	// InsertIfAbsent writes a new comment keyed by its platform comment ID.
	// Returns false without error when the comment already exists.
	InsertIfAbsent(ctx context.Context, c *Comment) (bool, error)
	GetByID(ctx context.Context, commentID string) (*Comment, error)
	AttachClassification(ctx context.Context, commentID string, cls *Classification) error
	// MarkProcessed finalizes the comment. replyMessage is stored only
	// for replied comments and may be empty otherwise.
	MarkProcessed(ctx context.Context, commentID, actionTaken, replyMessage string) error
	MarkFailed(ctx context.Context, commentID, reason string) error
	List(ctx context.Context, filter ListFilter) ([]Comment, int64, error)
	CountByStatus(ctx context.Context, clientID string, since time.Time) (map[string]int64, error)
	CountByAction(ctx context.Context, clientID string, since time.Time) (map[string]int64, error)
	CountBySentiment(ctx context.Context, clientID string, since time.Time) (map[string]int64, error)
	CountRequiringResponse(ctx context.Context, clientID string, since time.Time) (int64, error)
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &MongoDBRepository{
		collection: db.Collection(constants.CollectionComments),
	}
}

func (r *MongoDBRepository) InsertIfAbsent(ctx context.Context, c *Comment) (bool, error) {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = StatusPending
	}

	_, err := r.collection.InsertOne(ctx, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert comment: %w", err)
	}

	return true, nil
}

func (r *MongoDBRepository) GetByID(ctx context.Context, commentID string) (*Comment, error) {
	var c Comment
	err := r.collection.FindOne(ctx, bson.M{"_id": commentID}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrNotFound.WithDetail("comment_id", commentID)
		}
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return &c, nil
}

func (r *MongoDBRepository) AttachClassification(ctx context.Context, commentID string, cls *Classification) error {
	update := bson.M{
		"$set": bson.M{
			"classification": cls,
			"status":         StatusClassified,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": commentID}, update)
	if err != nil {
		return fmt.Errorf("failed to attach classification: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrNotFound.WithDetail("comment_id", commentID)
	}

	return nil
}

func (r *MongoDBRepository) MarkProcessed(ctx context.Context, commentID, actionTaken, replyMessage string) error {
	set := bson.M{
		"status":       StatusProcessed,
		"action_taken": actionTaken,
		"updated_at":   time.Now().UTC(),
	}
	if replyMessage != "" {
		set["reply_message"] = replyMessage
	}
	update := bson.M{"$set": set}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": commentID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark comment processed: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrNotFound.WithDetail("comment_id", commentID)
	}

	return nil
}

func (r *MongoDBRepository) MarkFailed(ctx context.Context, commentID, reason string) error {
	update := bson.M{
		"$set": bson.M{
			"status":         StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": commentID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark comment failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrNotFound.WithDetail("comment_id", commentID)
	}

	return nil
}

func (r *MongoDBRepository) List(ctx context.Context, filter ListFilter) ([]Comment, int64, error) {
	query := bson.M{}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}
	if filter.Platform != "" {
		query["platform"] = filter.Platform
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Sentiment != "" {
		query["classification.sentiment"] = filter.Sentiment
	}

	timeRange := bson.M{}
	if !filter.Since.IsZero() {
		timeRange["$gte"] = filter.Since
	}
	if !filter.Until.IsZero() {
		timeRange["$lt"] = filter.Until
	}
	if len(timeRange) > 0 {
		query["created_at"] = timeRange
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(filter.Offset))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, 0, fmt.Errorf("failed to decode comments: %w", err)
	}

	return comments, total, nil
}

func (r *MongoDBRepository) CountByStatus(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return r.countGrouped(ctx, clientID, since, "$status")
}

func (r *MongoDBRepository) CountByAction(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return r.countGrouped(ctx, clientID, since, "$action_taken")
}

func (r *MongoDBRepository) CountBySentiment(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return r.countGrouped(ctx, clientID, since, "$classification.sentiment")
}

func (r *MongoDBRepository) CountRequiringResponse(ctx context.Context, clientID string, since time.Time) (int64, error) {
	filter := bson.M{"classification.requires_response": true}
	if clientID != "" {
		filter["client_id"] = clientID
	}
	if !since.IsZero() {
		filter["created_at"] = bson.M{"$gte": since}
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments requiring response: %w", err)
	}
	return count, nil
}

func (r *MongoDBRepository) countGrouped(ctx context.Context, clientID string, since time.Time, groupField string) (map[string]int64, error) {
	match := bson.M{}
	if clientID != "" {
		match["client_id"] = clientID
	}
	if !since.IsZero() {
		match["created_at"] = bson.M{"$gte": since}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": groupField, "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate comments: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		counts[row.ID] = row.Count
	}

	return counts, nil
}
