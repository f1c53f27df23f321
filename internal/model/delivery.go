package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery states. Transitions are monotonic: sent -> delivered -> seen.
const (
	StateSent      = 1
	StateDelivered = 2
	StateSeen      = 3
)

// DeliveryStatus tracks per-recipient delivery of one message. One document
// per (message, recipient) pair; for groups, one per member excluding the
// sender. IsBlocked records that the recipient had blocked the sender at send
// time, so the attempt is kept on file without ever being exposed to them.
type DeliveryStatus struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MessageID   primitive.ObjectID `json:"messageId" bson:"message_id"`
	RecipientID string             `json:"recipientId" bson:"recipient_id"`
	State       int                `json:"state" bson:"state"`
	IsBlocked   bool               `json:"isBlocked" bson:"is_blocked"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

// StateName maps a delivery state to its wire name.
func StateName(state int) string {
	switch state {
	case StateDelivered:
		return "delivered"
	case StateSeen:
		return "seen"
	default:
		return "sent"
	}
}
