package persistence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/traillog/traillog/backend/go-services/internal/database"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// Settings configures the MongoDB backend. All string settings are required.
type Settings struct {
	URI              string
	Database         string
	CollectionSuffix string
	Timeout          time.Duration
}

// Validate reports the settings that are empty as a *ConfigurationError.
func (s Settings) Validate() error {
	var missing []string
	if s.URI == "" {
		missing = append(missing, "connection string")
	}
	if s.Database == "" {
		missing = append(missing, "database name")
	}
	if s.CollectionSuffix == "" {
		missing = append(missing, "collection suffix")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Backend is a connected database plus the collection naming rule.
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
	suffix string
}

// Open validates the settings and connects. Configuration problems yield a
// *ConfigurationError, unreachable servers a *ConnectionError; both are
// meant to stop the process.
func Open(ctx context.Context, s Settings) (*Backend, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	client, err := database.ConnectMongo(ctx, s.URI, s.Timeout)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	logger.Infof("connected to MongoDB database %q (collection suffix %q)", s.Database, s.CollectionSuffix)
	return NewBackend(client.Database(s.Database), s.CollectionSuffix), nil
}

// NewBackend wraps an already connected database.
func NewBackend(db *mongo.Database, suffix string) *Backend {
	return &Backend{client: db.Client(), db: db, suffix: suffix}
}

// Suffix returns the configured collection suffix.
func (b *Backend) Suffix() string { return b.suffix }

// Collection returns a raw collection named base plus the configured suffix.
func (b *Backend) Collection(base string) *mongo.Collection {
	return b.db.Collection(base + b.suffix)
}

// Ping checks the server is still reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, nil)
}

func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
