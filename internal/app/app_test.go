package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/traillog/traillog/backend/go-services/internal/config"
	"github.com/traillog/traillog/backend/go-services/internal/migration"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

func TestRegistryNames(t *testing.T) {
	stores := NewMemoryStores("Collection")
	require.Equal(t, []string{"Restaurant", "Session", "Trip", "User"}, stores.Registry().Names())
}

func TestMigrate_LegacyDocuments(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores("Collection")
	users := stores.Users.(*persistence.MemoryStore[models.User, *models.User])
	trips := stores.Trips.(*persistence.MemoryGeoStore[models.Trip, *models.Trip])
	require.NoError(t, users.InsertDocument(bson.M{"_id": "u1", "name": "legacy", "admin": false}))
	require.NoError(t, trips.InsertDocument(bson.M{"_id": "t1", "name": "Old trip", "creatorId": "u1"}))

	path := filepath.Join(t.TempDir(), "migrations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
directives:
  - entity: User
    renames: [{from: name, to: username}]
    remove: [admin]
  - entity: Trip
    renames: [{from: name, to: title}]
`), 0o600))

	reports, err := Migrate(ctx, stores, config.MigrationConfig{DirectivesFile: path, RecordRuns: true})
	require.NoError(t, err)
	require.Len(t, reports, 4)

	u, err := stores.Users.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "legacy", u.Username)
	require.Equal(t, models.RoleMember, u.Role)
	_, hasAdmin := users.Document("u1")["admin"]
	require.False(t, hasAdmin)

	tr, err := stores.Trips.FindByID(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Old trip", tr.Title)
	require.Equal(t, models.DifficultyUnrated, tr.Difficulty)

	recorded, err := migration.NewReportStore(stores.Reports).History(ctx, "UserCollection")
	require.NoError(t, err)
	require.Len(t, recorded, 1)

	again, err := Migrate(ctx, stores, config.MigrationConfig{DirectivesFile: path})
	require.NoError(t, err)
	for _, r := range again {
		require.Zero(t, r.Modified(migration.StepRename)+r.Modified(migration.StepDefault)+r.Modified(migration.StepRemove), r.Collection)
	}
}

func TestMigrate_MissingFileFillsDefaults(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores("Collection")
	users := stores.Users.(*persistence.MemoryStore[models.User, *models.User])
	require.NoError(t, users.InsertDocument(bson.M{"_id": "u1", "username": "bare"}))

	_, err := Migrate(ctx, stores, config.MigrationConfig{DirectivesFile: filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)
	require.Equal(t, "member", users.Document("u1")["role"])
}

func TestMigrate_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("directives: [{renames: [{from: a, to: b}]}]"), 0o600))
	_, err := Migrate(context.Background(), NewMemoryStores("Collection"), config.MigrationConfig{DirectivesFile: path})
	require.Error(t, err)
}
