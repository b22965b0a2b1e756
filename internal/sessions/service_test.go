package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

func newStoreService(opts ...Option) (*Service, *persistence.MemoryStore[Session, *Session]) {
	store := persistence.NewMemoryStore[Session]("Collection")
	return NewService(NewStoreRepository(store), opts...), store
}

func TestCreateAndValidateSession(t *testing.T) {
	svc, store := newStoreService()
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1", time.Hour)
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)
	require.NotEmpty(t, sess.ID)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	sess, err = svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestValidateRefresh_ExpiredIsRemoved(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newStoreService(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestValidateRefresh_Unknown(t *testing.T) {
	svc, _ := newStoreService()
	sess, err := svc.ValidateRefresh(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestRotate(t *testing.T) {
	svc, store := newStoreService()
	ctx := context.Background()
	old, err := svc.CreateSession(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	sess, next, err := svc.Rotate(ctx, old, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)
	require.NotEqual(t, old, next)

	gone, err := svc.ValidateRefresh(ctx, old)
	require.NoError(t, err)
	require.Nil(t, gone)
	live, err := svc.ValidateRefresh(ctx, next)
	require.NoError(t, err)
	require.NotNil(t, live)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	sess, next, err = svc.Rotate(ctx, old, time.Hour)
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Empty(t, next)
}

func TestRotate_SpendsTokenOnce(t *testing.T) {
	m := miniredis.RunT(t)
	redisSvc := NewService(NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), ""))
	storeSvc, _ := newStoreService()

	for name, svc := range map[string]*Service{"redis": redisSvc, "store": storeSvc} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old, err := svc.CreateSession(ctx, "user-1", time.Hour)
			require.NoError(t, err)

			var issued atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sess, next, err := svc.Rotate(ctx, old, time.Hour)
					assert.NoError(t, err)
					if sess != nil && next != "" {
						issued.Add(1)
					}
				}()
			}
			wg.Wait()
			require.EqualValues(t, 1, issued.Load())
		})
	}
}

func TestRevokeUser(t *testing.T) {
	m := miniredis.RunT(t)
	redisSvc := NewService(NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), ""))
	storeSvc, _ := newStoreService()

	for name, svc := range map[string]*Service{"redis": redisSvc, "store": storeSvc} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a1, err := svc.CreateSession(ctx, "alice", time.Hour)
			require.NoError(t, err)
			a2, err := svc.CreateSession(ctx, "alice", time.Hour)
			require.NoError(t, err)
			b1, err := svc.CreateSession(ctx, "bob", time.Hour)
			require.NoError(t, err)

			require.NoError(t, svc.RevokeUser(ctx, "alice"))
			for _, r := range []string{a1, a2} {
				sess, err := svc.ValidateRefresh(ctx, r)
				require.NoError(t, err)
				require.Nil(t, sess)
			}
			sess, err := svc.ValidateRefresh(ctx, b1)
			require.NoError(t, err)
			require.NotNil(t, sess)

			require.NoError(t, svc.RevokeUser(ctx, "nobody"))
		})
	}
}

func TestStoreRepository_CollectionName(t *testing.T) {
	_, store := newStoreService()
	require.Equal(t, "SessionCollection", store.CollectionName())
}
