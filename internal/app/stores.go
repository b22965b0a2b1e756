// Package app assembles the persistence stores of the service and runs
// schema auto-migration over them.
package app

import (
	"context"

	"github.com/traillog/traillog/backend/go-services/internal/migration"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
	"github.com/traillog/traillog/backend/go-services/internal/sessions"
)

// Store is a repository that can also be migrated.
type Store[T any] interface {
	persistence.Repository[T]
	persistence.FieldMigrator
}

// GeoStore is a located repository that can also be migrated.
type GeoStore[T any] interface {
	persistence.GeoRepository[T]
	persistence.FieldMigrator
}

// Stores holds one store per entity type.
type Stores struct {
	Users       Store[models.User]
	Trips       GeoStore[models.Trip]
	Restaurants GeoStore[models.Restaurant]
	Sessions    Store[sessions.Session]
	Reports     Store[migration.Report]
}

// OpenMongoStores creates the MongoDB-backed stores, ensuring the geo indexes.
func OpenMongoStores(ctx context.Context, b *persistence.Backend) (*Stores, error) {
	trips, err := persistence.NewMongoGeoStore[models.Trip](ctx, b)
	if err != nil {
		return nil, err
	}
	restaurants, err := persistence.NewMongoGeoStore[models.Restaurant](ctx, b)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Users:       persistence.NewMongoStore[models.User](b),
		Trips:       trips,
		Restaurants: restaurants,
		Sessions:    persistence.NewMongoStore[sessions.Session](b),
		Reports:     persistence.NewMongoStore[migration.Report](b),
	}, nil
}

// NewMemoryStores creates process-local stores named with suffix.
func NewMemoryStores(suffix string) *Stores {
	return &Stores{
		Users:       persistence.NewMemoryStore[models.User](suffix),
		Trips:       persistence.NewMemoryGeoStore[models.Trip](suffix),
		Restaurants: persistence.NewMemoryGeoStore[models.Restaurant](suffix),
		Sessions:    persistence.NewMemoryStore[sessions.Session](suffix),
		Reports:     persistence.NewMemoryStore[migration.Report](suffix),
	}
}

// Registry registers every migratable entity type. Run reports are written
// by the migrator itself and are not migrated.
func (s *Stores) Registry() *migration.Registry {
	r := migration.NewRegistry()
	migration.Register[models.User](r, s.Users)
	migration.Register[models.Trip](r, s.Trips)
	migration.Register[models.Restaurant](r, s.Restaurants)
	migration.Register[sessions.Session](r, s.Sessions)
	return r
}
