package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/email"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// SentinelUsername is the account that inherits the trips of deleted users.
const SentinelUsername = "deleted-user"

var (
	ErrUsernameTaken      = fmt.Errorf("%w: username already taken", apperr.ErrConflict)
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RegisterInput carries a new account's credentials.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) validate() error {
	if n := len(strings.TrimSpace(in.Username)); n < 3 || n > 32 {
		return apperr.Invalid("username must have 3 to 32 characters")
	}
	if strings.EqualFold(strings.TrimSpace(in.Username), SentinelUsername) {
		return ErrUsernameTaken
	}
	if !strings.Contains(in.Email, "@") {
		return apperr.Invalid("email address is not valid")
	}
	if len(in.Password) < 8 {
		return apperr.Invalid("password must have at least 8 characters")
	}
	return nil
}

// Service encapsulates user-related business logic
type Service struct {
	repo  persistence.Repository[models.User]
	trips persistence.Repository[models.Trip]
	mail  email.Sender
	now   func() time.Time
	cost  int

	sentinelMu sync.Mutex
	sentinel   *models.User
}

type Option func(*Service)

// WithHashCost sets the bcrypt cost of password hashes.
func WithHashCost(cost int) Option { return func(s *Service) { s.cost = cost } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo persistence.Repository[models.User], trips persistence.Repository[models.Trip], mail email.Sender, opts ...Option) *Service {
	s := &Service{repo: repo, trips: trips, mail: mail, now: time.Now, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a member account and sends the welcome mail. A failed
// mail is logged and does not fail the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	existing, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u, err := s.repo.Create(ctx, &models.User{
		Username:        username,
		Email:           strings.TrimSpace(in.Email),
		PasswordHash:    string(hash),
		Role:            models.RoleMember,
		TripIDs:         []string{},
		FollowedTripIDs: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	if s.mail != nil {
		if err := s.mail.Send(ctx, email.Welcome(u.Email, u.Username)); err != nil {
			logger.Warnf("welcome mail to user %s failed: %v", u.ID, err)
		}
	}
	return u, nil
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the user or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	found, err := s.repo.FindByProperty(ctx, models.UserUsername.Is(username))
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.List(ctx)
}

// UpsertFromClaims maps an external identity to a local user, creating it
// on first sight. Returns nil when the claims carry no subject.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]any) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, nil
	}
	mail, _ := claims["email"].(string)
	found, err := s.repo.FindByProperty(ctx, models.UserExternalSub.Is(sub))
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		u := found[0]
		if mail == "" || mail == u.Email {
			return u, nil
		}
		u.Email = mail
		u.UpdatedAt = s.now().UTC()
		return s.repo.Update(ctx, u.ID, u)
	}

	username := claimUsername(claims, sub)
	if taken, err := s.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if taken != nil {
		username = username + "-" + shortSub(sub)
	}
	now := s.now().UTC()
	return s.repo.Create(ctx, &models.User{
		Username:        username,
		Email:           mail,
		Role:            models.RoleMember,
		ExternalSub:     sub,
		TripIDs:         []string{},
		FollowedTripIDs: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func claimUsername(claims map[string]any, sub string) string {
	for _, k := range []string{"preferred_username", "name"} {
		if v, _ := claims[k].(string); strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return "user-" + shortSub(sub)
}

func shortSub(sub string) string {
	if len(sub) > 8 {
		return sub[:8]
	}
	return sub
}

// AddTrip appends a trip to the user's own trip list.
func (s *Service) AddTrip(ctx context.Context, userID, tripID string) error {
	return s.updateList(ctx, userID, models.UserTripIDs, func(u *models.User) []string {
		return appendUnique(u.TripIDs, tripID)
	})
}

// RemoveTrip drops a trip from the user's own trip list.
func (s *Service) RemoveTrip(ctx context.Context, userID, tripID string) error {
	return s.updateList(ctx, userID, models.UserTripIDs, func(u *models.User) []string {
		return without(u.TripIDs, tripID)
	})
}

// FollowTrip bookmarks an existing trip.
func (s *Service) FollowTrip(ctx context.Context, userID, tripID string) (*models.User, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, apperr.NotFound("trip", tripID)
	}
	if err := s.updateList(ctx, userID, models.UserFollowedTripIDs, func(u *models.User) []string {
		return appendUnique(u.FollowedTripIDs, tripID)
	}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) UnfollowTrip(ctx context.Context, userID, tripID string) (*models.User, error) {
	if err := s.updateList(ctx, userID, models.UserFollowedTripIDs, func(u *models.User) []string {
		return without(u.FollowedTripIDs, tripID)
	}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) updateList(ctx context.Context, userID string, field persistence.Field[models.User, []string], next func(*models.User) []string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.NotFound("user", userID)
	}
	updated, err := s.repo.FindAndUpdateByProperty(ctx, userID, field.Is(next(u)))
	if err != nil {
		return err
	}
	if updated == nil {
		return apperr.NotFound("user", userID)
	}
	return nil
}

// Sentinel returns the fallback account, creating it on first use. Concurrent
// first calls create exactly one account.
func (s *Service) Sentinel(ctx context.Context) (*models.User, error) {
	s.sentinelMu.Lock()
	defer s.sentinelMu.Unlock()
	if s.sentinel != nil {
		cp := *s.sentinel
		return &cp, nil
	}
	found, err := s.repo.FindByProperty(ctx, models.UserRole.Is(models.RoleSentinel))
	if err != nil {
		return nil, err
	}
	var u *models.User
	if len(found) > 0 {
		u = found[0]
	} else {
		now := s.now().UTC()
		u, err = s.repo.Create(ctx, &models.User{
			Username:        SentinelUsername,
			Role:            models.RoleSentinel,
			TripIDs:         []string{},
			FollowedTripIDs: []string{},
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("created sentinel user %s", u.ID)
	}
	s.sentinel = u
	cp := *u
	return &cp, nil
}

// Delete removes a user after handing its trips to the sentinel. Only the
// user itself or an admin may delete an account. The reassignment and the
// delete are separate writes; a failure in between is logged and returned.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.NotFound("user", id)
	}
	if u.Role == models.RoleSentinel {
		return fmt.Errorf("%w: the sentinel account can not be deleted", apperr.ErrForbidden)
	}
	if requesterID != id {
		requester, err := s.repo.FindByID(ctx, requesterID)
		if err != nil {
			return err
		}
		if requester == nil || requester.Role != models.RoleAdmin {
			return apperr.ErrForbidden
		}
	}

	sentinel, err := s.Sentinel(ctx)
	if err != nil {
		return err
	}
	owned, err := s.trips.FindByProperty(ctx, models.TripCreatorID.Is(id))
	if err != nil {
		return err
	}
	for _, t := range owned {
		if _, err := s.trips.FindAndUpdateByProperty(ctx, t.ID, models.TripCreatorID.Is(sentinel.ID)); err != nil {
			logger.With(logger.Fields{"user": id, "trip": t.ID}).Errorf("reassigning trip to sentinel failed: %v", err)
			return err
		}
		if err := s.AddTrip(ctx, sentinel.ID, t.ID); err != nil {
			logger.With(logger.Fields{"user": id, "trip": t.ID}).Errorf("adding trip to sentinel list failed: %v", err)
			return err
		}
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		logger.With(logger.Fields{"user": id, "reassigned": len(owned)}).Errorf("trips reassigned but user delete failed: %v", err)
		return err
	}
	if !ok {
		return apperr.NotFound("user", id)
	}
	logger.Infof("deleted user %s, %d trips reassigned to sentinel", id, len(owned))
	return nil
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(append([]string{}, list...), id)
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
