package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	TypeText         = "text"
	TypeImage        = "image"
	TypeVideo        = "video"
	TypeAudio        = "audio"
	TypeDocument     = "document"
	TypeSystem       = "system"
	TypeAnnouncement = "announcement"
	TypeCall         = "call"
)

// TargetKind discriminates the conversation a message belongs to.
type TargetKind string

const (
	TargetDirect    TargetKind = "direct"
	TargetGroup     TargetKind = "group"
	TargetBroadcast TargetKind = "broadcast"
)

// Target is the single addressing field of a message. Exactly one kind is
// valid at a time: a direct counterpart, a group id, or a broadcast
// correlation key shared by all physical copies of one broadcast send.
type Target struct {
	Kind TargetKind `json:"kind" bson:"kind"`
	ID   string     `json:"id" bson:"id"`
}

func DirectTarget(userID string) Target {
	return Target{Kind: TargetDirect, ID: userID}
}

func GroupTarget(groupID string) Target {
	return Target{Kind: TargetGroup, ID: groupID}
}

func BroadcastTarget(correlationKey string) Target {
	return Target{Kind: TargetBroadcast, ID: correlationKey}
}

// FileRef points at an already-uploaded attachment. Upload itself is handled
// by the file service; we only carry the reference.
type FileRef struct {
	URL      string `json:"url" bson:"url"`
	Name     string `json:"name" bson:"name"`
	Size     int64  `json:"size" bson:"size"`
	MimeType string `json:"mimeType" bson:"mime_type"`
}

// Message is a chat message document. The row is immutable after insert
// except for Content (edit action) and UpdatedAt; everything else that looks
// like mutation (stars, pins, deletes, reactions) lives in message_actions.
type Message struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	SenderID    string              `json:"senderId" bson:"sender_id"`
	Target      Target              `json:"target" bson:"target"`
	CopyFor     string              `json:"copyFor,omitempty" bson:"copy_for,omitempty"`
	Type        string              `json:"type" bson:"type"`
	Content     *string             `json:"content" bson:"content"`
	File        *FileRef            `json:"file,omitempty" bson:"file,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty" bson:"metadata,omitempty"`
	IsEncrypted bool                `json:"isEncrypted" bson:"is_encrypted"`
	ParentID    *primitive.ObjectID `json:"parentId,omitempty" bson:"parent_id,omitempty"`
	Mentions    []string            `json:"mentions,omitempty" bson:"mentions,omitempty"`
	CreatedAt   time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updatedAt" bson:"updated_at"`
	DeletedAt   *time.Time          `json:"deletedAt,omitempty" bson:"deleted_at,omitempty"`
}

// MetaBroadcastID is the metadata key carrying the broadcast list id on every
// physical copy of a broadcast send.
const MetaBroadcastID = "broadcast_id"

// BroadcastListID returns the owning broadcast list id for a broadcast copy,
// or "" for non-broadcast messages.
func (m *Message) BroadcastListID() string {
	if m.Target.Kind != TargetBroadcast || m.Metadata == nil {
		return ""
	}
	if id, ok := m.Metadata[MetaBroadcastID].(string); ok {
		return id
	}
	return ""
}

// ConversationKey returns the canonical conversation key the message belongs
// to from a given participant's point of view. For broadcast copies the
// sender's view is the list conversation; the recipient's view is the direct
// conversation with the sender.
func (m *Message) ConversationKey(viewerID string) string {
	switch m.Target.Kind {
	case TargetGroup:
		return GroupKey(m.Target.ID)
	case TargetBroadcast:
		if viewerID == m.SenderID {
			return BroadcastListKey(m.BroadcastListID())
		}
		return DirectKey(m.SenderID, m.CopyFor)
	default:
		return DirectKey(m.SenderID, m.Target.ID)
	}
}

// DirectKey builds the canonical key for a 1:1 conversation. The pair is
// sorted so both participants resolve the same key.
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "direct:" + a + ":" + b
}

func GroupKey(groupID string) string {
	return "group:" + groupID
}

func BroadcastListKey(listID string) string {
	return "broadcast:" + listID
}
