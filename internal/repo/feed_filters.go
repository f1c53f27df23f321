package repo

import (
	"time"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/bson"
)

// Feed filters are pure functions so each read path can be exercised in
// tests without a live database.

// FeedWindow narrows a feed by the viewer's clear marker (exclusive lower
// bound) and, for former group members, the member_left boundary (inclusive
// upper bound).
type FeedWindow struct {
	After  *time.Time // messages with created_at <= After are hidden
	Before *time.Time // messages with created_at > Before are hidden
}

func (w FeedWindow) apply(f *db.FilterBuilder) *db.FilterBuilder {
	switch {
	case w.After != nil && w.Before != nil:
		f.Eq("created_at", bson.M{"$gt": *w.After, "$lte": *w.Before})
	case w.After != nil:
		f.Gt("created_at", *w.After)
	case w.Before != nil:
		f.Lte("created_at", *w.Before)
	}
	return f
}

// DirectFeedFilter matches the 1:1 conversation between viewer and other:
// plain direct messages in either direction plus broadcast copies addressed
// to or authored for this pair.
func DirectFeedFilter(viewerID, otherID string, window FeedWindow) bson.M {
	pair := []bson.M{
		directLeg(viewerID, otherID),
		directLeg(otherID, viewerID),
		broadcastLeg(viewerID, otherID),
		broadcastLeg(otherID, viewerID),
	}
	return window.apply(db.NewFilter().Or(pair...)).Build()
}

func directLeg(senderID, recipientID string) bson.M {
	return db.NewFilter().
		Eq("sender_id", senderID).
		Eq("target.kind", model.TargetDirect).
		Eq("target.id", recipientID).
		Build()
}

func broadcastLeg(senderID, copyFor string) bson.M {
	return db.NewFilter().
		Eq("sender_id", senderID).
		Eq("target.kind", model.TargetBroadcast).
		Eq("copy_for", copyFor).
		Build()
}

// GroupFeedFilter matches all messages of one group.
func GroupFeedFilter(groupID string, window FeedWindow) bson.M {
	return window.apply(db.NewFilter().
		Eq("target.kind", model.TargetGroup).
		Eq("target.id", groupID)).
		Build()
}

// BroadcastFeedFilter matches the owner's physical copies of every send to
// one broadcast list. Copies sharing a correlation key are merged into one
// representative item at read time.
func BroadcastFeedFilter(ownerID, listID string, window FeedWindow) bson.M {
	return window.apply(db.NewFilter().
		Eq("sender_id", ownerID).
		Eq("target.kind", model.TargetBroadcast).
		Eq("metadata."+model.MetaBroadcastID, listID)).
		Build()
}

// AnnouncementFeedFilter matches system announcements addressed to the viewer.
func AnnouncementFeedFilter(viewerID string, window FeedWindow) bson.M {
	return window.apply(db.NewFilter().
		Eq("type", model.TypeAnnouncement).
		Eq("target.kind", model.TargetDirect).
		Eq("target.id", viewerID)).
		Build()
}
