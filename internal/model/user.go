package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. Authentication and profile
// management live in the account service; this store is a synced read model.
type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID       string             `json:"userId" bson:"user_id"`
	Username     string             `json:"username" bson:"username"`
	Email        string             `json:"email" bson:"email"`
	FirstName    string             `json:"firstName" bson:"first_name"`
	LastName     string             `json:"lastName" bson:"last_name"`
	Avatar       string             `json:"avatar" bson:"avatar"`
	About        string             `json:"about" bson:"about"`
	HideProfile  bool               `json:"hideProfile" bson:"hide_profile"`
	HideAbout    bool               `json:"hideAbout" bson:"hide_about"`
	HideLastSeen bool               `json:"hideLastSeen" bson:"hide_last_seen"`
	IsActive     bool               `json:"isActive" bson:"is_active"`
	LastSeenAt   *time.Time         `json:"lastSeenAt,omitempty" bson:"last_seen_at,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt    *time.Time         `json:"updatedAt,omitempty" bson:"updated_at,omitempty"`
}

// UserSummary is the privacy-filtered projection embedded in message and
// chat-target responses.
type UserSummary struct {
	UserID     string     `json:"userId"`
	Username   string     `json:"username"`
	Avatar     string     `json:"avatar,omitempty"`
	About      string     `json:"about,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// Summary applies the user's privacy settings and returns the public view.
func (u *User) Summary() UserSummary {
	s := UserSummary{UserID: u.UserID, Username: u.Username}
	if !u.HideProfile {
		s.Avatar = u.Avatar
	}
	if !u.HideAbout {
		s.About = u.About
	}
	if !u.HideLastSeen {
		s.LastSeenAt = u.LastSeenAt
	}
	return s
}
