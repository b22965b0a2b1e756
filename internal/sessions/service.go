package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// Service issues, rotates and revokes refresh sessions.
type Service struct {
	repo Repository
	now  func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(r Repository, opts ...Option) *Service {
	s := &Service{repo: r, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores a session for userID and returns its refresh token.
func (s *Service) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	refresh, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	sess := &Session{RefreshToken: refresh, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return refresh, nil
}

// ValidateRefresh returns the live session holding refresh, or nil. An
// expired session found on the way is removed.
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(s.now().UTC()) {
		if _, err := s.repo.DeleteByRefresh(ctx, refresh); err != nil {
			logger.Warnf("removing expired session of user %s failed: %v", sess.UserID, err)
		}
		return nil, nil
	}
	return sess, nil
}

// Rotate exchanges a live refresh token for a new one with a fresh ttl. The
// old token is invalid afterwards. It returns nil and an empty token when
// refresh is not live, including when a concurrent call spent it first.
func (s *Service) Rotate(ctx context.Context, refresh string, ttl time.Duration) (*Session, string, error) {
	sess, err := s.ValidateRefresh(ctx, refresh)
	if err != nil || sess == nil {
		return nil, "", err
	}
	removed, err := s.repo.DeleteByRefresh(ctx, refresh)
	if err != nil {
		return nil, "", err
	}
	if !removed {
		logger.Warnf("refresh token of user %s was already spent", sess.UserID)
		return nil, "", nil
	}
	next, err := s.CreateSession(ctx, sess.UserID, ttl)
	if err != nil {
		logger.With(logger.Fields{"user": sess.UserID}).Errorf("refresh rotation dropped the old session but could not create a new one: %v", err)
		return nil, "", err
	}
	return sess, next, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	_, err := s.repo.DeleteByRefresh(ctx, refresh)
	return err
}

// RevokeUser ends every session of userID.
func (s *Service) RevokeUser(ctx context.Context, userID string) error {
	n, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions of %s: %w", userID, err)
	}
	if n > 0 {
		logger.Infof("revoked %d sessions of user %s", n, userID)
	}
	return nil
}
