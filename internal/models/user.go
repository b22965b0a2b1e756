package models

import (
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

// Role is the access level of a user.
type Role string

const (
	RoleMember   Role = "member"
	RoleAdmin    Role = "admin"
	RoleSentinel Role = "sentinel"
)

// DefaultVariant is written to users stored before roles existed.
func (Role) DefaultVariant() any { return RoleMember }

// User represents an application user. ExternalSub links accounts created
// from an external identity provider.
type User struct {
	ID              string    `bson:"_id" json:"id"`
	Username        string    `bson:"username" json:"username" field:"required"`
	Email           string    `bson:"email" json:"email"`
	PasswordHash    string    `bson:"passwordHash" json:"-"`
	Role            Role      `bson:"role" json:"role"`
	ExternalSub     string    `bson:"externalSub" json:"externalSub,omitempty"`
	TripIDs         []string  `bson:"tripIds" json:"tripIds"`
	FollowedTripIDs []string  `bson:"followedTripIds" json:"followedTripIds"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) EntityID() string      { return u.ID }
func (u *User) SetEntityID(id string) { u.ID = id }

var (
	UserUsername        = persistence.NewField[User, string]("username")
	UserExternalSub     = persistence.NewField[User, string]("externalSub")
	UserRole            = persistence.NewField[User, Role]("role")
	UserTripIDs         = persistence.NewField[User, []string]("tripIds")
	UserFollowedTripIDs = persistence.NewField[User, []string]("followedTripIds")
	// UserOwnsTrip matches users whose trip list contains one trip id.
	UserOwnsTrip = persistence.NewField[User, string]("tripIds")
)
