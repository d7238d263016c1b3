package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	if err := createJobIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to create jobs indexes: %w", err)
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func jobIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_status_created_at"),
		},
		{
			Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "completed_at", Value: -1},
			},
			Options: options.Index().SetName("idx_kind_completed_at"),
		},
	}
}

func createJobIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.Jobs()

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, jobIndexes()); err != nil {
		return err
	}

	slog.Info("Created jobs indexes")
	return nil
}
