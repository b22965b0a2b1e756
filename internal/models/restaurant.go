package models

import (
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

type Restaurant struct {
	ID        string                `bson:"_id" json:"id"`
	Name      string                `bson:"name" json:"name" field:"required"`
	Cuisine   string                `bson:"cuisine" json:"cuisine"`
	Address   string                `bson:"address" json:"address"`
	Location  *persistence.GeoPoint `bson:"location,omitempty" json:"location,omitempty" field:"-"`
	CreatorID string                `bson:"creatorId" json:"creatorId" field:"identity"`
	CreatedAt time.Time             `bson:"createdAt" json:"createdAt"`
}

func (r *Restaurant) EntityID() string                      { return r.ID }
func (r *Restaurant) SetEntityID(id string)                 { r.ID = id }
func (r *Restaurant) EntityLocation() *persistence.GeoPoint { return r.Location }

var RestaurantCreatorID = persistence.NewField[Restaurant, string]("creatorId")
