package trips

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

type fakeOwners struct {
	mu     sync.Mutex
	lists  map[string][]string
	addErr error
}

func (f *fakeOwners) AddTrip(_ context.Context, userID, tripID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	if f.lists == nil {
		f.lists = map[string][]string{}
	}
	f.lists[userID] = append(f.lists[userID], tripID)
	return nil
}

func (f *fakeOwners) RemoveTrip(_ context.Context, userID, tripID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lists == nil {
		return nil
	}
	var kept []string
	for _, id := range f.lists[userID] {
		if id != tripID {
			kept = append(kept, id)
		}
	}
	f.lists[userID] = kept
	return nil
}

type fakeImages struct {
	objects map[string]string
}

func (f *fakeImages) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[key] = string(b)
	return nil
}

func (f *fakeImages) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key + "?sig=1", nil
}

type fixture struct {
	svc         *Service
	owners      *fakeOwners
	images      *fakeImages
	restaurants *persistence.MemoryGeoStore[models.Restaurant, *models.Restaurant]
}

func newFixture() fixture {
	owners := &fakeOwners{}
	images := &fakeImages{}
	restaurants := persistence.NewMemoryGeoStore[models.Restaurant]("Collection")
	svc := NewService(persistence.NewMemoryGeoStore[models.Trip]("Collection"), restaurants, owners, images)
	return fixture{svc: svc, owners: owners, images: images, restaurants: restaurants}
}

func lakeTrip() Input {
	return Input{
		Title:           "Lake loop",
		Start:           Coordinates{Lat: 47.0, Lng: 8.0},
		End:             Coordinates{Lat: 47.0, Lng: 8.1},
		DurationMinutes: 120,
	}
}

func TestRate(t *testing.T) {
	a := persistence.NewGeoPoint(47.0, 8.0)
	b := persistence.NewGeoPoint(47.0, 8.1)
	require.InDelta(t, 7.58, RouteKm(a, b), 0.05)

	require.Equal(t, models.DifficultyEasy, Rate(a, b, 600))
	require.Equal(t, models.DifficultyModerate, Rate(a, b, 120))
	require.Equal(t, models.DifficultyExtreme, Rate(a, b, 30))
	require.Equal(t, models.DifficultyUnrated, Rate(a, b, 0))
}

func TestMidpoint(t *testing.T) {
	m := Midpoint(persistence.NewGeoPoint(40, 10), persistence.NewGeoPoint(42, 14))
	require.Equal(t, 41.0, m.Lat())
	require.Equal(t, 12.0, m.Lng())
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	trip, err := f.svc.Create(ctx, "user-1", lakeTrip())
	require.NoError(t, err)
	require.NotEmpty(t, trip.ID)
	require.Equal(t, "user-1", trip.CreatorID)
	require.Equal(t, models.DifficultyModerate, trip.Difficulty)
	require.NotNil(t, trip.Location)
	require.InDelta(t, 8.05, trip.Location.Lng(), 1e-9)
	require.Equal(t, []string{trip.ID}, f.owners.lists["user-1"])

	got, err := f.svc.Get(ctx, trip.ID)
	require.NoError(t, err)
	require.Equal(t, "Lake loop", got.Title)

	mine, err := f.svc.ListByCreator(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := lakeTrip()
	in.Title = "  "
	_, err := f.svc.Create(ctx, "u", in)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	in = lakeTrip()
	in.End.Lat = 95
	_, err = f.svc.Create(ctx, "u", in)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	in = lakeTrip()
	in.DurationMinutes = -1
	_, err = f.svc.Create(ctx, "u", in)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	require.Empty(t, f.owners.lists)
}

func TestCreate_OwnerFailureStopsInsert(t *testing.T) {
	f := newFixture()
	f.owners.addErr = errors.New("user store down")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "u", lakeTrip())
	require.Error(t, err)
	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "owner", lakeTrip())
	require.NoError(t, err)
	trip, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)

	in := lakeTrip()
	in.Title = "Renamed"
	in.DurationMinutes = 600
	_, err = f.svc.Update(ctx, "intruder", trip.ID, in)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := f.svc.Update(ctx, "owner", trip.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, models.DifficultyEasy, updated.Difficulty)
	require.Equal(t, trip.ID, updated.ID)
	require.True(t, trip.CreatedAt.Equal(updated.CreatedAt))

	require.ErrorIs(t, f.svc.Delete(ctx, "intruder", trip.ID), apperr.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, "owner", trip.ID))
	_, err = f.svc.Get(ctx, trip.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Empty(t, f.owners.lists["owner"])
}

func TestAttachImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	trip, err := f.svc.Create(ctx, "owner", lakeTrip())
	require.NoError(t, err)

	_, err = f.svc.AttachImage(ctx, "owner", trip.ID, "notes.txt", "text/plain", 4, strings.NewReader("text"))
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	updated, err := f.svc.AttachImage(ctx, "owner", trip.ID, "Summit.JPG", "image/jpeg", 3, strings.NewReader("jpg"))
	require.NoError(t, err)
	require.Len(t, updated.ImageKeys, 1)
	key := updated.ImageKeys[0]
	require.True(t, strings.HasPrefix(key, "trips/"+trip.ID+"/"))
	require.True(t, strings.HasSuffix(key, ".jpg"))
	require.Equal(t, "jpg", f.images.objects[key])

	url, err := f.svc.ImageURL(ctx, trip.ID, key)
	require.NoError(t, err)
	require.Contains(t, url, key)

	_, err = f.svc.ImageURL(ctx, trip.ID, "trips/other/key.png")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAttachImage_NoStore(t *testing.T) {
	svc := NewService(persistence.NewMemoryGeoStore[models.Trip]("Collection"), persistence.NewMemoryGeoStore[models.Restaurant]("Collection"), &fakeOwners{}, nil)
	_, err := svc.AttachImage(context.Background(), "u", "t", "a.png", "image/png", 1, strings.NewReader("x"))
	require.ErrorIs(t, err, ErrNoImageStore)
}

func TestClosestRestaurantAndNearby(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	trip, err := f.svc.Create(ctx, "owner", lakeTrip())
	require.NoError(t, err)

	none, err := f.svc.ClosestRestaurant(ctx, trip.ID)
	require.NoError(t, err)
	require.Nil(t, none)

	far := persistence.NewGeoPoint(46.0, 7.0)
	near := persistence.NewGeoPoint(47.01, 8.05)
	_, err = f.restaurants.Create(ctx, &models.Restaurant{Name: "far", Location: &far})
	require.NoError(t, err)
	_, err = f.restaurants.Create(ctx, &models.Restaurant{Name: "near", Location: &near})
	require.NoError(t, err)

	r, err := f.svc.ClosestRestaurant(ctx, trip.ID)
	require.NoError(t, err)
	require.Equal(t, "near", r.Name)

	in := lakeTrip()
	in.Start = Coordinates{Lat: 40, Lng: 3}
	in.End = Coordinates{Lat: 40.1, Lng: 3.1}
	_, err = f.svc.Create(ctx, "owner", in)
	require.NoError(t, err)

	nearby, err := f.svc.Nearby(ctx, 47.0, 8.0, 1)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	require.Equal(t, trip.ID, nearby[0].ID)

	_, err = f.svc.Nearby(ctx, 47.0, 8.0, 0)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.svc.Nearby(ctx, 100, 8.0, 3)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}
