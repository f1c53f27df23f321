package event

// TypingPayload relays a typing indicator between sessions.
type TypingPayload struct {
	ConversationKey string `json:"conversationKey"`
	UserID          string `json:"userId"`
	IsTyping        bool   `json:"isTyping"`
}

// DeliveredPayload acknowledges delivery of messages to a session.
type DeliveredPayload struct {
	MessageIDs []string `json:"messageIds"`
}

// ReadPayload announces seen transitions to the other parties.
type ReadPayload struct {
	ConversationKey string   `json:"conversationKey"`
	ReaderID        string   `json:"readerId"`
	MessageIDs      []string `json:"messageIds"`
	ReadAt          string   `json:"readAt"`
}

// DeletePayload announces a delete action.
type DeletePayload struct {
	MessageID       string `json:"messageId"`
	ConversationKey string `json:"conversationKey"`
	Scope           string `json:"scope"`
	DeletedBy       string `json:"deletedBy"`
}

// ReactionPayload announces a reaction change.
type ReactionPayload struct {
	MessageID       string `json:"messageId"`
	ConversationKey string `json:"conversationKey"`
	ActorID         string `json:"actorId"`
	Emoji           string `json:"emoji,omitempty"`
	Action          string `json:"action"` // added, updated, removed
}

// PinPayload announces a pin or unpin.
type PinPayload struct {
	MessageID       string `json:"messageId"`
	ConversationKey string `json:"conversationKey"`
	ActorID         string `json:"actorId"`
	Pinned          bool   `json:"pinned"`
}

// ChatStatePayload announces a per-chat flag change (clear, archive, chat
// pin, block).
type ChatStatePayload struct {
	ConversationKey string `json:"conversationKey"`
	UserID          string `json:"userId"`
	Value           bool   `json:"value,omitempty"`
}
