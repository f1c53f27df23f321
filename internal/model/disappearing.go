package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Disappearing duration classes.
const (
	Disappear24h       = "24h"
	Disappear7d        = "7d"
	Disappear90d       = "90d"
	DisappearAfterSeen = "after_seen"
)

// DurationSeconds maps a duration class to its expiry window. after_seen has
// no window: the message expires the moment it is seen.
func DurationSeconds(class string) *int64 {
	var secs int64
	switch class {
	case Disappear24h:
		secs = 24 * 60 * 60
	case Disappear7d:
		secs = 7 * 24 * 60 * 60
	case Disappear90d:
		secs = 90 * 24 * 60 * 60
	default:
		return nil
	}
	return &secs
}

// DisappearingSetting is the per-conversation disappearing configuration.
type DisappearingSetting struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationKey    string             `json:"conversationKey" bson:"conversation_key"`
	Enabled            bool               `json:"enabled" bson:"enabled"`
	Duration           string             `json:"duration" bson:"duration"`
	ExpireAfterSeconds *int64             `json:"expireAfterSeconds" bson:"expire_after_seconds"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updated_at"`
}

// MessageDisappearing is the per-message expiry instance, created lazily at
// dispatch time when the conversation has disappearing enabled. ExpireAt
// stays nil until the first seen transition commits it; once set it is never
// re-computed.
type MessageDisappearing struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MessageID       primitive.ObjectID `json:"messageId" bson:"message_id"`
	ConversationKey string             `json:"conversationKey" bson:"conversation_key"`
	ExpireAt        *time.Time         `json:"expireAt" bson:"expire_at"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
}

// Expired reports whether the instance has an expiry in the past.
func (d *MessageDisappearing) Expired(now time.Time) bool {
	return d.ExpireAt != nil && d.ExpireAt.Before(now)
}
