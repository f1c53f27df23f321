package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActionType is the closed set of ledger entry kinds.
type ActionType string

const (
	ActionStar     ActionType = "star"
	ActionReaction ActionType = "reaction"
	ActionEdit     ActionType = "edit"
	ActionPin      ActionType = "pin"
	ActionDelete   ActionType = "delete"
	ActionForward  ActionType = "forward"
)

// DeleteScope narrows a delete action to the actor or to everyone.
type DeleteScope string

const (
	DeleteForMe       DeleteScope = "me"
	DeleteForEveryone DeleteScope = "everyone"
)

// ActionDetails carries the variant payload of a ledger entry. Only the
// fields relevant to the entry's type are set; the ledger dispatches on
// MessageAction.Type, never on which fields happen to be non-zero.
type ActionDetails struct {
	Emoji       string      `json:"emoji,omitempty" bson:"emoji,omitempty"`
	OldContent  *string     `json:"oldContent,omitempty" bson:"old_content,omitempty"`
	NewContent  *string     `json:"newContent,omitempty" bson:"new_content,omitempty"`
	Scope       DeleteScope `json:"scope,omitempty" bson:"scope,omitempty"`
	ForwardedTo []string    `json:"forwardedTo,omitempty" bson:"forwarded_to,omitempty"`
}

// MessageAction is one entry of the action ledger: the single source of
// truth for all derived message state. The message document itself is only
// mutated for edits.
//
// Uniqueness rules:
//   - star: unique per (message, actor), toggled by delete-then-insert
//   - reaction: unique per (message, actor), latest emoji overwrites
//   - edit: upsert per (message, actor), latest wins
//   - pin: conversation-level, one entry per message, latest pinner wins
//   - delete: keyed per (message, actor, scope); for-me toggles, the
//     for-everyone entry is idempotent and never touched by a for-me toggle
//   - forward: append-only
type MessageAction struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MessageID       primitive.ObjectID `json:"messageId" bson:"message_id"`
	ConversationKey string             `json:"conversationKey" bson:"conversation_key"`
	ActorID         string             `json:"actorId" bson:"actor_id"`
	Type            ActionType         `json:"type" bson:"type"`
	Details         ActionDetails      `json:"details" bson:"details"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
}
