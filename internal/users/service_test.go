package users

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/email"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return r.err
}

type fixture struct {
	svc   *Service
	users *persistence.MemoryStore[models.User, *models.User]
	trips *persistence.MemoryStore[models.Trip, *models.Trip]
	mail  *recordingSender
}

func newFixture() fixture {
	users := persistence.NewMemoryStore[models.User]("Collection")
	trips := persistence.NewMemoryStore[models.Trip]("Collection")
	mail := &recordingSender{}
	return fixture{svc: NewService(users, trips, mail, WithHashCost(bcrypt.MinCost)), users: users, trips: trips, mail: mail}
}

func (f fixture) register(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Username: name, Email: name + "@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	return u
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.register(t, "alice")
	require.NotEmpty(t, u.ID)
	require.Equal(t, models.RoleMember, u.Role)
	require.NotEqual(t, "correct-horse", u.PasswordHash)
	require.Len(t, f.mail.sent, 1)
	require.Equal(t, "alice@example.com", f.mail.sent[0].To)

	got, err := f.svc.Authenticate(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = f.svc.Authenticate(ctx, "alice", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "nobody", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.register(t, "alice")

	cases := []RegisterInput{
		{Username: "al", Email: "a@b.c", Password: "long-enough"},
		{Username: "alice2", Email: "no-at-sign", Password: "long-enough"},
		{Username: "alice2", Email: "a@b.c", Password: "short"},
	}
	for _, in := range cases {
		_, err := f.svc.Register(ctx, in)
		require.ErrorIs(t, err, apperr.ErrInvalidInput, "input %+v", in)
	}

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "x@y.z", Password: "long-enough"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.Register(ctx, RegisterInput{Username: SentinelUsername, Email: "x@y.z", Password: "long-enough"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_MailFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.mail.err = errors.New("relay down")
	u := f.register(t, "bob")
	require.NotNil(t, u)
}

func TestUpsertFromClaims(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.UpsertFromClaims(ctx, map[string]any{"sub": "sub-123456789", "email": "x@example.com", "preferred_username": "xavier"})
	require.NoError(t, err)
	require.Equal(t, "xavier", u.Username)
	require.Equal(t, "sub-123456789", u.ExternalSub)

	again, err := f.svc.UpsertFromClaims(ctx, map[string]any{"sub": "sub-123456789", "email": "new@example.com"})
	require.NoError(t, err)
	require.Equal(t, u.ID, again.ID)
	require.Equal(t, "new@example.com", again.Email)

	other, err := f.svc.UpsertFromClaims(ctx, map[string]any{"sub": "other-sub-1", "preferred_username": "xavier"})
	require.NoError(t, err)
	require.Equal(t, "xavier-other-su", other.Username)

	none, err := f.svc.UpsertFromClaims(ctx, map[string]any{"email": "y@e.com"})
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestFollowAndUnfollow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.register(t, "carol")
	trip, err := f.trips.Create(ctx, &models.Trip{Title: "coast"})
	require.NoError(t, err)

	got, err := f.svc.FollowTrip(ctx, u.ID, trip.ID)
	require.NoError(t, err)
	require.Equal(t, []string{trip.ID}, got.FollowedTripIDs)

	got, err = f.svc.FollowTrip(ctx, u.ID, trip.ID)
	require.NoError(t, err)
	require.Len(t, got.FollowedTripIDs, 1)

	_, err = f.svc.FollowTrip(ctx, u.ID, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err = f.svc.UnfollowTrip(ctx, u.ID, trip.ID)
	require.NoError(t, err)
	require.Empty(t, got.FollowedTripIDs)
}

func TestSentinel_ConcurrentFirstAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.Sentinel(ctx)
			assert.NoError(t, err)
			if s != nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	sentinels, err := f.users.FindByProperty(ctx, models.UserRole.Is(models.RoleSentinel))
	require.NoError(t, err)
	require.Len(t, sentinels, 1)
}

func TestSentinel_ReusesStoredAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stored, err := f.users.Create(ctx, &models.User{Username: SentinelUsername, Role: models.RoleSentinel})
	require.NoError(t, err)

	s, err := f.svc.Sentinel(ctx)
	require.NoError(t, err)
	require.Equal(t, stored.ID, s.ID)
}

func TestDelete_ReassignsTripsToSentinel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.register(t, "dave")
	trip, err := f.trips.Create(ctx, &models.Trip{Title: "alps", CreatorID: u.ID})
	require.NoError(t, err)
	require.NoError(t, f.svc.AddTrip(ctx, u.ID, trip.ID))

	other := f.register(t, "erin")
	require.ErrorIs(t, f.svc.Delete(ctx, other.ID, u.ID), apperr.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, u.ID, u.ID))
	gone, err := f.svc.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	sentinel, err := f.svc.Sentinel(ctx)
	require.NoError(t, err)
	moved, err := f.trips.FindByID(ctx, trip.ID)
	require.NoError(t, err)
	require.Equal(t, sentinel.ID, moved.CreatorID)

	stored, err := f.svc.Get(ctx, sentinel.ID)
	require.NoError(t, err)
	require.Contains(t, stored.TripIDs, trip.ID)

	require.ErrorIs(t, f.svc.Delete(ctx, sentinel.ID, sentinel.ID), apperr.ErrForbidden)
	require.ErrorIs(t, f.svc.Delete(ctx, u.ID, u.ID), apperr.ErrNotFound)
}

func TestDelete_AdminMayDeleteOthers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	target := f.register(t, "frank")
	admin, err := f.users.Create(ctx, &models.User{Username: "root", Role: models.RoleAdmin})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, admin.ID, target.ID))
}
