package service

import "Meetzy/internal/event"

// Notifier is the realtime publish port. The engine calls it synchronously
// after each committed write; delivery is best-effort and a failed publish
// must never fail or roll back the underlying write, so the interface
// returns nothing.
type Notifier interface {
	PublishToUser(userID string, ev event.WsEvent)
	PublishToGroup(groupID string, ev event.WsEvent)
}

// NopNotifier discards every event. Used in tests and as a safe default.
type NopNotifier struct{}

func (NopNotifier) PublishToUser(string, event.WsEvent)  {}
func (NopNotifier) PublishToGroup(string, event.WsEvent) {}
