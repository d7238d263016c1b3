package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/tablescout/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobArchive keeps terminal job snapshots after they leave process memory
type JobArchive struct {
	collection *mongo.Collection
}

// NewJobArchive creates a new job archive
func NewJobArchive(db *MongoDB) *JobArchive {
	return &JobArchive{
		collection: db.Jobs(),
	}
}

// Save upserts a job snapshot by id
func (r *JobArchive) Save(ctx context.Context, job model.Job) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": job.ID}, job, opts); err != nil {
		return fmt.Errorf("failed to archive job %s: %w", job.ID, err)
	}
	return nil
}

// Get retrieves an archived job
func (r *JobArchive) Get(ctx context.Context, id string) (model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var job model.Job
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Job{}, model.ErrJobNotFound
		}
		return model.Job{}, fmt.Errorf("failed to get archived job: %w", err)
	}
	return job.Clone(), nil
}

// List retrieves the most recent archived jobs, optionally filtered by status
func (r *JobArchive) List(ctx context.Context, status model.JobStatus, limit int64) ([]model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"artifacts.data": 0})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived jobs: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var jobs []model.Job
	if err := cursor.All(ctxTimeout, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode archived jobs: %w", err)
	}
	return jobs, nil
}

// DeleteBefore removes archived jobs completed before cutoff
func (r *JobArchive) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"completed_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived jobs: %w", err)
	}
	return result.DeletedCount, nil
}
