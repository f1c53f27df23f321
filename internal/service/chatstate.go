package service

import (
	"context"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/monitoring"
	"Meetzy/internal/repo"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ChatState manages per-user conversation state: clear markers, archive and
// pin flags, locks and block relationships. Clear markers only ever move
// forward; hidden history never comes back.
type ChatState struct {
	state    repo.ChatStateRepository
	blocks   repo.BlockRepository
	notifier Notifier
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func NewChatState(
	state repo.ChatStateRepository,
	blocks repo.BlockRepository,
	notifier Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *ChatState {
	return &ChatState{
		state:    state,
		blocks:   blocks,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// ClearChat raises the viewer's clear marker for one conversation to now.
func (c *ChatState) ClearChat(ctx context.Context, userID, conversationKey string) error {
	now := time.Now().UTC()
	if err := c.state.RaiseClearMarker(ctx, userID, conversationKey, now); err != nil {
		return Internal(err, "failed to clear conversation")
	}
	c.publish(userID, event.EventChatCleared, event.ChatStatePayload{
		ConversationKey: conversationKey,
		UserID:          userID,
	})
	return nil
}

// ClearAllChats raises the global clear marker, flooring every conversation
// of the user.
func (c *ChatState) ClearAllChats(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	if err := c.state.RaiseGlobalClearMarker(ctx, userID, now); err != nil {
		return Internal(err, "failed to clear conversations")
	}
	c.publish(userID, event.EventChatsClearedAll, event.ChatStatePayload{UserID: userID})
	return nil
}

// DeleteChat soft-hides the conversation for the user. A later send revives
// it.
func (c *ChatState) DeleteChat(ctx context.Context, userID, conversationKey string) error {
	now := time.Now().UTC()
	if err := c.state.SoftDelete(ctx, userID, conversationKey, now); err != nil {
		return Internal(err, "failed to delete conversation")
	}
	// Deleting also hides the existing history.
	if err := c.state.RaiseClearMarker(ctx, userID, conversationKey, now); err != nil {
		return Internal(err, "failed to clear conversation")
	}
	return nil
}

func (c *ChatState) SetArchived(ctx context.Context, userID, conversationKey string, archived bool) error {
	if err := c.state.SetArchived(ctx, userID, conversationKey, archived); err != nil {
		return Internal(err, "failed to update archive flag")
	}
	c.publish(userID, event.EventChatArchiveUpdated, event.ChatStatePayload{
		ConversationKey: conversationKey,
		UserID:          userID,
		Value:           archived,
	})
	return nil
}

func (c *ChatState) SetChatPinned(ctx context.Context, userID, conversationKey string, pinned bool) error {
	if err := c.state.SetChatPinned(ctx, userID, conversationKey, pinned); err != nil {
		return Internal(err, "failed to update chat pin flag")
	}
	c.publish(userID, event.EventChatPinUpdated, event.ChatStatePayload{
		ConversationKey: conversationKey,
		UserID:          userID,
		Value:           pinned,
	})
	return nil
}

func (c *ChatState) SetFavorite(ctx context.Context, userID, conversationKey string, favorite bool) error {
	if err := c.state.SetFavorite(ctx, userID, conversationKey, favorite); err != nil {
		return Internal(err, "failed to update favorite flag")
	}
	return nil
}

func (c *ChatState) SetMuted(ctx context.Context, userID, conversationKey string, muted bool) error {
	if err := c.state.SetMuted(ctx, userID, conversationKey, muted); err != nil {
		return Internal(err, "failed to update mute flag")
	}
	return nil
}

// LockChat protects a conversation behind a pin. An empty pin removes the
// lock.
func (c *ChatState) LockChat(ctx context.Context, userID, conversationKey, pin string) error {
	if pin == "" {
		if err := c.state.SetLock(ctx, userID, conversationKey, ""); err != nil {
			return Internal(err, "failed to remove lock")
		}
		return nil
	}
	if len(pin) < 4 {
		return Validation("PIN_TOO_SHORT", "pin must be at least 4 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return Internal(err, "failed to hash pin")
	}
	if err := c.state.SetLock(ctx, userID, conversationKey, string(hash)); err != nil {
		return Internal(err, "failed to set lock")
	}
	return nil
}

// Block records userID blocking otherID. Both parties learn the new state;
// the payload carries no more than the delta.
func (c *ChatState) Block(ctx context.Context, userID, otherID string) error {
	if otherID == "" || otherID == userID {
		return Validation("INVALID_TARGET", "cannot block this user")
	}
	if err := c.blocks.Block(ctx, userID, otherID, time.Now().UTC()); err != nil {
		return Internal(err, "failed to block user")
	}
	c.publishBlockDelta(userID, otherID, true)
	return nil
}

func (c *ChatState) Unblock(ctx context.Context, userID, otherID string) error {
	removed, err := c.blocks.Unblock(ctx, userID, otherID)
	if err != nil {
		return Internal(err, "failed to unblock user")
	}
	if !removed {
		return NotFound("BLOCK_NOT_FOUND", "user is not blocked")
	}
	c.publishBlockDelta(userID, otherID, false)
	return nil
}

func (c *ChatState) publishBlockDelta(userID, otherID string, blocked bool) {
	payload := event.ChatStatePayload{
		ConversationKey: "", // block state is user-level, not per conversation
		UserID:          userID,
		Value:           blocked,
	}
	c.metrics.EventsPublished.WithLabelValues(event.EventBlockStatusUpdated).Inc()
	c.notifier.PublishToUser(userID, event.New(event.EventBlockStatusUpdated, payload))
	c.notifier.PublishToUser(otherID, event.New(event.EventBlockStatusUpdated, payload))
}

func (c *ChatState) publish(userID, name string, payload any) {
	c.metrics.EventsPublished.WithLabelValues(name).Inc()
	c.notifier.PublishToUser(userID, event.New(name, payload))
}
