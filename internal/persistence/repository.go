package persistence

import "context"

// Repository is the storage-independent contract every domain service
// depends on. Absent documents are reported as a nil result with a nil error.
type Repository[T any] interface {
	// Create assigns an identity when the entity has none and inserts it.
	Create(ctx context.Context, entity *T) (*T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	// FindByProperty returns every entity whose field equals the value. An
	// array field matches when one of its elements equals the value.
	FindByProperty(ctx context.Context, match Property[T]) ([]*T, error)
	// FindAndUpdateByProperty atomically sets one field and returns the
	// updated entity. It never creates a document.
	FindAndUpdateByProperty(ctx context.Context, id string, set Property[T]) (*T, error)
	// Update replaces the stored entity; the replacement keeps identity id.
	Update(ctx context.Context, id string, replacement *T) (*T, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*T, error)
}

// GeoRepository adds proximity search for located entities.
type GeoRepository[T any] interface {
	Repository[T]
	// FindNearest returns at most count entities with a location, closest first.
	FindNearest(ctx context.Context, point GeoPoint, count int) ([]*T, error)
}

// FieldMigrator is the bulk field-level surface driven by schema auto-migration.
// Each call returns the number of documents it modified.
type FieldMigrator interface {
	CollectionName() string
	// RenameField renames from to to on documents that have from and lack to.
	RenameField(ctx context.Context, from, to string) (int64, error)
	// SetFieldDefault sets field on documents where it is absent.
	SetFieldDefault(ctx context.Context, field string, value any) (int64, error)
	// UnsetField removes field from documents where it exists.
	UnsetField(ctx context.Context, field string) (int64, error)
}
