package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/traillog/traillog/backend/go-services/internal/migration"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

func fieldNames[T any]() map[string]migration.Kind {
	out := map[string]migration.Kind{}
	for _, f := range migration.Describe[T]() {
		out[f.Name] = f.Kind
	}
	return out
}

func TestFieldTokensAddressDescribedFields(t *testing.T) {
	users := fieldNames[User]()
	for _, name := range []string{UserUsername.Name(), UserExternalSub.Name(), UserRole.Name(), UserTripIDs.Name(), UserFollowedTripIDs.Name(), UserOwnsTrip.Name()} {
		require.Contains(t, users, name)
	}
	require.Equal(t, migration.KindEnum, users["role"])

	trips := fieldNames[Trip]()
	for _, name := range []string{TripCreatorID.Name(), TripImageKeys.Name(), TripTitle.Name()} {
		require.Contains(t, trips, name)
	}
	require.Equal(t, migration.KindIdentity, trips["creatorId"])
	require.Equal(t, migration.KindEnum, trips["difficulty"])
	require.Equal(t, migration.KindObject, trips["start"])
	require.NotContains(t, trips, persistence.LocationField)

	require.Contains(t, fieldNames[Restaurant](), RestaurantCreatorID.Name())
}

func TestCollectionNames(t *testing.T) {
	require.Equal(t, "UserCollection", persistence.CollectionName[User]("Collection"))
	require.Equal(t, "TripCollection", persistence.CollectionName[Trip]("Collection"))
	require.Equal(t, "RestaurantCollection", persistence.CollectionName[Restaurant]("Collection"))
}

func TestEnumDefaults(t *testing.T) {
	require.Equal(t, RoleMember, Role("").DefaultVariant())
	require.Equal(t, DifficultyUnrated, Difficulty("").DefaultVariant())
}
