package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GlobalConversationKey is the pseudo conversation used by clear-all: its
// clear marker is the floor for every conversation of the user.
const GlobalConversationKey = "*"

// ChatPreference is the per-(user, conversation) state document: clear
// marker, soft-delete marker, lock pin and the assorted chat flags. ClearedAt
// only moves forward in time ($max update), never backward.
type ChatPreference struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID          string             `json:"userId" bson:"user_id"`
	ConversationKey string             `json:"conversationKey" bson:"conversation_key"`
	ClearedAt       *time.Time         `json:"clearedAt,omitempty" bson:"cleared_at,omitempty"`
	DeletedAt       *time.Time         `json:"deletedAt,omitempty" bson:"deleted_at,omitempty"`
	Archived        bool               `json:"archived" bson:"archived"`
	Pinned          bool               `json:"pinned" bson:"pinned"`
	Favorite        bool               `json:"favorite" bson:"favorite"`
	Muted           bool               `json:"muted" bson:"muted"`
	Locked          bool               `json:"locked" bson:"locked"`
	PinHash         string             `json:"-" bson:"pin_hash,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Block is a 1:1 block record. CreatedAt doubles as the suppression boundary:
// counterpart messages created after it are hidden from the blocker.
type Block struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BlockerID string             `json:"blockerId" bson:"blocker_id"`
	BlockedID string             `json:"blockedId" bson:"blocked_id"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}
