package trips

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

const (
	maxTitleLen     = 120
	maxNearby       = 50
	imageURLExpires = 15 * time.Minute
)

// ErrNoImageStore is returned by image operations when object storage is not configured.
var ErrNoImageStore = errors.New("image storage not configured")

// Owners keeps the per-user list of created trips.
type Owners interface {
	AddTrip(ctx context.Context, userID, tripID string) error
	RemoveTrip(ctx context.Context, userID, tripID string) error
}

// ImageStore holds uploaded trip images.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) point() persistence.GeoPoint { return persistence.NewGeoPoint(c.Lat, c.Lng) }

// Input is the client-writable part of a trip.
type Input struct {
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Start           Coordinates `json:"start"`
	End             Coordinates `json:"end"`
	DurationMinutes int         `json:"durationMinutes"`
}

func (in Input) validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return apperr.Invalid("title must have 1 to %d characters", maxTitleLen)
	}
	if err := in.Start.point().Validate(); err != nil {
		return apperr.Invalid("start: %v", err)
	}
	if err := in.End.point().Validate(); err != nil {
		return apperr.Invalid("end: %v", err)
	}
	if in.DurationMinutes < 0 {
		return apperr.Invalid("duration must not be negative")
	}
	return nil
}

type Service struct {
	trips       persistence.GeoRepository[models.Trip]
	restaurants persistence.GeoRepository[models.Restaurant]
	owners      Owners
	images      ImageStore
	now         func() time.Time
}

// NewService wires the trip service. images may be nil when object storage is
// not configured; image operations then fail with ErrNoImageStore.
func NewService(trips persistence.GeoRepository[models.Trip], restaurants persistence.GeoRepository[models.Restaurant], owners Owners, images ImageStore) *Service {
	return &Service{trips: trips, restaurants: restaurants, owners: owners, images: images, now: time.Now}
}

func (s *Service) apply(t *models.Trip, in Input) {
	t.Title = strings.TrimSpace(in.Title)
	t.Description = strings.TrimSpace(in.Description)
	t.Start = in.Start.point()
	t.End = in.End.point()
	mid := Midpoint(t.Start, t.End)
	t.Location = &mid
	t.DurationMinutes = in.DurationMinutes
	t.Difficulty = Rate(t.Start, t.End, in.DurationMinutes)
	t.UpdatedAt = s.now().UTC()
}

// Create records the trip in the creator's list and then inserts it. The two
// writes are not transactional; a failed insert leaves the id in the list
// and is logged.
func (s *Service) Create(ctx context.Context, creatorID string, in Input) (*models.Trip, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &models.Trip{ID: uuid.NewString(), CreatorID: creatorID, ImageKeys: []string{}}
	s.apply(t, in)
	t.CreatedAt = t.UpdatedAt

	if err := s.owners.AddTrip(ctx, creatorID, t.ID); err != nil {
		return nil, err
	}
	created, err := s.trips.Create(ctx, t)
	if err != nil {
		logger.With(logger.Fields{"user": creatorID, "trip": t.ID}).Errorf("trip listed for creator but insert failed: %v", err)
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Trip, error) {
	t, err := s.trips.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("trip", id)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Trip, error) {
	return s.trips.List(ctx)
}

func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]*models.Trip, error) {
	return s.trips.FindByProperty(ctx, models.TripCreatorID.Is(creatorID))
}

func (s *Service) owned(ctx context.Context, requesterID, id string) (*models.Trip, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.CreatorID != requesterID {
		return nil, apperr.ErrForbidden
	}
	return t, nil
}

// Update replaces the writable fields of a trip owned by requesterID.
func (s *Service) Update(ctx context.Context, requesterID, id string, in Input) (*models.Trip, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t, err := s.owned(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	s.apply(t, in)
	updated, err := s.trips.Update(ctx, id, t)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("trip", id)
	}
	return updated, nil
}

// Delete removes a trip owned by requesterID and drops it from the owner's list.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	t, err := s.owned(ctx, requesterID, id)
	if err != nil {
		return err
	}
	ok, err := s.trips.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("trip", id)
	}
	if err := s.owners.RemoveTrip(ctx, t.CreatorID, id); err != nil {
		logger.With(logger.Fields{"user": t.CreatorID, "trip": id}).Errorf("trip deleted but still listed for creator: %v", err)
	}
	return nil
}

// AttachImage uploads an image under trips/<id>/ and records its key.
func (s *Service) AttachImage(ctx context.Context, requesterID, id, filename, contentType string, size int64, r io.Reader) (*models.Trip, error) {
	if s.images == nil {
		return nil, ErrNoImageStore
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Invalid("content type %q is not an image", contentType)
	}
	t, err := s.owned(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("trips/%s/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.images.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	keys := append(append([]string{}, t.ImageKeys...), key)
	updated, err := s.trips.FindAndUpdateByProperty(ctx, id, models.TripImageKeys.Is(keys))
	if err != nil {
		logger.With(logger.Fields{"trip": id, "key": key}).Errorf("image uploaded but not recorded: %v", err)
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("trip", id)
	}
	return updated, nil
}

// ImageURL returns a short-lived download URL for one of the trip's images.
func (s *Service) ImageURL(ctx context.Context, id, key string) (string, error) {
	if s.images == nil {
		return "", ErrNoImageStore
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	for _, k := range t.ImageKeys {
		if k == key {
			return s.images.PresignedURL(ctx, key, imageURLExpires)
		}
	}
	return "", apperr.NotFound("image", key)
}

// ClosestRestaurant returns the restaurant nearest to the trip midpoint, or
// nil when no restaurant has a location.
func (s *Service) ClosestRestaurant(ctx context.Context, tripID string) (*models.Restaurant, error) {
	t, err := s.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	mid := Midpoint(t.Start, t.End)
	if t.Location != nil {
		mid = *t.Location
	}
	found, err := s.restaurants.FindNearest(ctx, mid, 1)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Nearby returns up to n trips whose midpoint is closest to the point.
func (s *Service) Nearby(ctx context.Context, lat, lng float64, n int) ([]*models.Trip, error) {
	p := persistence.NewGeoPoint(lat, lng)
	if err := p.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	if n <= 0 || n > maxNearby {
		return nil, apperr.Invalid("n must be between 1 and %d", maxNearby)
	}
	return s.trips.FindNearest(ctx, p, n)
}
