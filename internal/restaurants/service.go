package restaurants

import (
	"context"
	"strings"
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

const maxNearest = 50

// Input is the client-writable part of a restaurant.
type Input struct {
	Name    string  `json:"name"`
	Cuisine string  `json:"cuisine"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type Service struct {
	repo persistence.GeoRepository[models.Restaurant]
	now  func() time.Time
}

func NewService(repo persistence.GeoRepository[models.Restaurant]) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, creatorID string, in Input) (*models.Restaurant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}
	loc := persistence.NewGeoPoint(in.Lat, in.Lng)
	if err := loc.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	return s.repo.Create(ctx, &models.Restaurant{
		Name:      name,
		Cuisine:   strings.TrimSpace(in.Cuisine),
		Address:   strings.TrimSpace(in.Address),
		Location:  &loc,
		CreatorID: creatorID,
		CreatedAt: s.now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, id string) (*models.Restaurant, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("restaurant", id)
	}
	return r, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Restaurant, error) {
	return s.repo.List(ctx)
}

// Nearest returns up to n restaurants ordered by distance to the point.
func (s *Service) Nearest(ctx context.Context, lat, lng float64, n int) ([]*models.Restaurant, error) {
	p := persistence.NewGeoPoint(lat, lng)
	if err := p.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	if n <= 0 || n > maxNearest {
		return nil, apperr.Invalid("n must be between 1 and %d", maxNearest)
	}
	return s.repo.FindNearest(ctx, p, n)
}

// Delete removes a restaurant; only its creator may do so.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.CreatorID != requesterID {
		return apperr.ErrForbidden
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("restaurant", id)
	}
	return nil
}
