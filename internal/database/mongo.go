package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultJobsCollection holds archived job snapshots
const DefaultJobsCollection = "jobs"

// Options describes how the archive reaches MongoDB
type Options struct {
	URI         string
	Database    string
	Collection  string
	Timeout     time.Duration
	MaxPoolSize uint64
	MinPoolSize uint64
	Compressors []string
}

// clientOptions turns o into driver options. Archive writes are small
// upserts issued once per finished job, so a modest pool is enough.
func (o Options) clientOptions() *options.ClientOptions {
	maxPool := o.MaxPoolSize
	if maxPool == 0 {
		maxPool = 10
	}
	opts := options.Client().
		ApplyURI(o.URI).
		SetAppName("tablescout").
		SetMaxPoolSize(maxPool).
		SetMinPoolSize(min(o.MinPoolSize, maxPool)).
		SetConnectTimeout(o.Timeout).
		SetServerSelectionTimeout(o.Timeout).
		SetRetryWrites(true).
		SetRetryReads(true)
	if len(o.Compressors) > 0 {
		opts.SetCompressors(o.Compressors)
	}
	return opts
}

func (o Options) collection() string {
	if o.Collection == "" {
		return DefaultJobsCollection
	}
	return o.Collection
}

// MongoDB is the archive's handle on the database
type MongoDB struct {
	client *mongo.Client
	jobs   *mongo.Collection
}

// Connect opens the client and checks the primary is reachable within o.Timeout
func Connect(ctx context.Context, o Options) (*MongoDB, error) {
	slog.Info("Connecting to MongoDB", "database", o.Database, "collection", o.collection())

	client, err := mongo.Connect(ctx, o.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("Connected to MongoDB")
	return &MongoDB{
		client: client,
		jobs:   client.Database(o.Database).Collection(o.collection()),
	}, nil
}

// Jobs returns the archive collection
func (m *MongoDB) Jobs() *mongo.Collection {
	return m.jobs
}

// Ping backs the readiness probe
func (m *MongoDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.client.Ping(pingCtx, readpref.Primary())
}

// Disconnect waits up to 10s for in-flight archive writes
func (m *MongoDB) Disconnect(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(disconnectCtx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	slog.Info("Disconnected from MongoDB")
	return nil
}
