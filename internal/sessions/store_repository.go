package sessions

import (
	"context"
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

// Repository stores refresh sessions keyed by their refresh token.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	// GetByRefresh returns nil when no live session holds the token.
	GetByRefresh(ctx context.Context, refresh string) (*Session, error)
	// DeleteByRefresh reports whether this call removed the session.
	DeleteByRefresh(ctx context.Context, refresh string) (bool, error)
	// DeleteByUser drops every session of a user and returns how many it removed.
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// StoreRepository keeps sessions in the document store. Used when Redis is
// not configured.
type StoreRepository struct {
	repo persistence.Repository[Session]
}

func NewStoreRepository(repo persistence.Repository[Session]) *StoreRepository {
	return &StoreRepository{repo: repo}
}

func (r *StoreRepository) Create(ctx context.Context, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.repo.Create(ctx, s)
	return err
}

func (r *StoreRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	found, err := r.repo.FindByProperty(ctx, SessionRefreshToken.Is(refresh))
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (r *StoreRepository) DeleteByRefresh(ctx context.Context, refresh string) (bool, error) {
	n, err := r.deleteAll(ctx, SessionRefreshToken.Is(refresh))
	return n > 0, err
}

func (r *StoreRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.deleteAll(ctx, SessionUserID.Is(userID))
}

func (r *StoreRepository) deleteAll(ctx context.Context, match persistence.Property[Session]) (int, error) {
	found, err := r.repo.FindByProperty(ctx, match)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range found {
		ok, err := r.repo.Delete(ctx, s.ID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
