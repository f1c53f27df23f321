package event

import "encoding/json"

// Server -> client event names. These are the wire contract toward connected
// sessions; payloads carry the minimal delta needed to update client state
// without a refetch.
const (
	EventReceiveMessage         = "receive-message"
	EventMessageUpdated         = "message-updated"
	EventMessageDeleted         = "message-deleted"
	EventMessageReactionUpdated = "message-reaction-updated"
	EventMessagePin             = "message-pin"
	EventMessagesRead           = "messages-read"
	EventChatCleared            = "chat-cleared"
	EventChatsClearedAll        = "chats-cleared-all"
	EventChatArchiveUpdated     = "chat-archive-updated"
	EventChatPinUpdated         = "chat-pin-updated"
	EventBlockStatusUpdated     = "block-status-updated"
)

// Client -> server event names.
const (
	EventTyping    = "typing"
	EventDelivered = "delivered"
)

// WsEvent is the envelope for every frame on the socket.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// New wraps a payload into a WsEvent, marshalling it in place. A payload
// that fails to marshal yields an event with a null payload; the notifier is
// best-effort and never propagates the failure.
func New(name string, payload any) WsEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return WsEvent{Event: name, Payload: raw}
}
