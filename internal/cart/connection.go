package cart

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMaxPoolSize = 100
	defaultMinPoolSize = 10
)

// ConnectMongoDB opens a verified connection and returns a handle on the
// named database. Zero pool sizes fall back to the defaults.
func ConnectMongoDB(ctx context.Context, uri, database string, maxPool, minPool uint64) (*mongo.Database, error) {
	if maxPool == 0 {
		maxPool = defaultMaxPoolSize
	}
	if minPool == 0 {
		minPool = defaultMinPoolSize
	}

	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(maxPool).
		SetMinPoolSize(minPool)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}
