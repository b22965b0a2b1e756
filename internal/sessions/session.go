package sessions

import (
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

// Session is a refresh session of one user.
type Session struct {
	ID           string    `bson:"_id" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) EntityID() string      { return s.ID }
func (s *Session) SetEntityID(id string) { s.ID = id }

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

var (
	SessionRefreshToken = persistence.NewField[Session, string]("refreshToken")
	SessionUserID       = persistence.NewField[Session, string]("userId")
)
