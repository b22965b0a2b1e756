package persistence

import (
	"reflect"
)

// IdentityField is the document field holding an entity's identity.
const IdentityField = "_id"

// LocationField is the document field holding a located entity's GeoJSON point.
const LocationField = "location"

// HasIdentity is implemented by every persisted entity. The identity is
// assigned once at creation and never reassigned afterwards.
type HasIdentity interface {
	EntityID() string
	SetEntityID(id string)
}

// HasLocation is implemented by entities that can be searched by proximity.
// EntityLocation returns nil when the entity has no location.
type HasLocation interface {
	HasIdentity
	EntityLocation() *GeoPoint
}

// Entity constrains a store's type parameter to pointer types carrying an identity.
type Entity[T any] interface {
	*T
	HasIdentity
}

// LocatedEntity constrains geo stores to entities carrying a location.
type LocatedEntity[T any] interface {
	*T
	HasLocation
}

// CollectionNamer lets an entity override its type name in collection naming.
type CollectionNamer interface {
	CollectionBaseName() string
}

// CollectionName resolves the collection of T as its type name plus suffix.
func CollectionName[T any](suffix string) string {
	var zero T
	if n, ok := any(&zero).(CollectionNamer); ok {
		return n.CollectionBaseName() + suffix
	}
	return reflect.TypeOf(zero).Name() + suffix
}
