package models

import (
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

type Difficulty string

const (
	DifficultyUnrated  Difficulty = "unrated"
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
	DifficultyExtreme  Difficulty = "extreme"
)

func (Difficulty) DefaultVariant() any { return DifficultyUnrated }

// Trip is a route between two points. Location is the midpoint of the route
// and is what proximity searches run against; it is derived on write.
type Trip struct {
	ID              string                `bson:"_id" json:"id"`
	Title           string                `bson:"title" json:"title" field:"required"`
	Description     string                `bson:"description" json:"description"`
	CreatorID       string                `bson:"creatorId" json:"creatorId" field:"identity"`
	Start           persistence.GeoPoint  `bson:"start" json:"start"`
	End             persistence.GeoPoint  `bson:"end" json:"end"`
	Location        *persistence.GeoPoint `bson:"location,omitempty" json:"location,omitempty" field:"-"`
	ImageKeys       []string              `bson:"imageKeys" json:"imageKeys"`
	DurationMinutes int                   `bson:"durationMinutes" json:"durationMinutes"`
	Difficulty      Difficulty            `bson:"difficulty" json:"difficulty"`
	CreatedAt       time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time             `bson:"updatedAt" json:"updatedAt"`
}

func (t *Trip) EntityID() string                      { return t.ID }
func (t *Trip) SetEntityID(id string)                 { t.ID = id }
func (t *Trip) EntityLocation() *persistence.GeoPoint { return t.Location }

var (
	TripCreatorID = persistence.NewField[Trip, string]("creatorId")
	TripImageKeys = persistence.NewField[Trip, []string]("imageKeys")
	TripTitle     = persistence.NewField[Trip, string]("title")
)
