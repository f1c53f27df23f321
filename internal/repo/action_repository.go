package repo

import (
	"context"
	"fmt"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Toggle outcomes.
const (
	OutcomeAdded   = "added"
	OutcomeUpdated = "updated"
	OutcomeRemoved = "removed"
)

type ActionRepository interface {
	// Toggle flips a unique (message, actor, type[, scope]) action: removes
	// it when present, inserts it otherwise. Implemented as
	// delete-then-insert so there is no read-then-decide window.
	Toggle(ctx context.Context, action *model.MessageAction) (string, error)
	// SetReaction holds the one-reaction-per-actor rule: the same emoji
	// toggles off, a different emoji overwrites.
	SetReaction(ctx context.Context, action *model.MessageAction) (string, error)
	// Upsert records an edit/pin/delete-for-everyone against the entry's
	// uniqueness key, latest wins.
	Upsert(ctx context.Context, action *model.MessageAction) error
	Append(ctx context.Context, action *model.MessageAction) error
	Remove(ctx context.Context, messageID primitive.ObjectID, actorID string, actionType model.ActionType) (bool, error)
	ForMessages(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.MessageAction, error)
	PinsForConversation(ctx context.Context, conversationKey string) ([]model.MessageAction, error)
}

type actionRepository struct {
	mongoRepo *db.Repository[model.MessageAction]
	logger    *zap.Logger
}

func NewActionRepository(repo *db.Repository[model.MessageAction], logger *zap.Logger) ActionRepository {
	return &actionRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// actionKey is the uniqueness key of one ledger entry. Pins are
// conversation-level, keyed by message alone; delete entries are keyed per
// scope so a delete-for-me toggle can never touch a delete-for-everyone row.
func actionKey(a *model.MessageAction) bson.M {
	f := db.NewFilter().
		ObjectID("message_id", a.MessageID).
		Eq("type", a.Type)
	if a.Type != model.ActionPin {
		f = f.Eq("actor_id", a.ActorID)
	}
	if a.Details.Scope != "" {
		f = f.Eq("details.scope", a.Details.Scope)
	}
	return f.Build()
}

func (r *actionRepository) Toggle(ctx context.Context, action *model.MessageAction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	removed, err := r.mongoRepo.DeleteOne(ctx, actionKey(action))
	if err != nil {
		return "", fmt.Errorf("toggle delete failed: %w", err)
	}
	if removed {
		return OutcomeRemoved, nil
	}

	if _, err := r.mongoRepo.Create(ctx, *action); err != nil {
		return "", fmt.Errorf("toggle insert failed: %w", err)
	}
	return OutcomeAdded, nil
}

func (r *actionRepository) SetReaction(ctx context.Context, action *model.MessageAction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// Same emoji present -> toggle off.
	sameEmoji := actionKey(action)
	sameEmoji["details.emoji"] = action.Details.Emoji
	removed, err := r.mongoRepo.DeleteOne(ctx, sameEmoji)
	if err != nil {
		return "", fmt.Errorf("reaction delete failed: %w", err)
	}
	if removed {
		return OutcomeRemoved, nil
	}

	// Otherwise upsert: a different emoji is overwritten in place, holding
	// at most one reaction per (message, actor).
	existing, err := r.mongoRepo.Exists(ctx, actionKey(action))
	if err != nil {
		return "", fmt.Errorf("reaction lookup failed: %w", err)
	}

	if err := r.mongoRepo.Upsert(ctx, actionKey(action), bson.M{
		"$set": bson.M{
			"conversation_key": action.ConversationKey,
			"details":          action.Details,
		},
		"$setOnInsert": bson.M{"created_at": action.CreatedAt},
	}); err != nil {
		return "", fmt.Errorf("reaction upsert failed: %w", err)
	}

	if existing {
		return OutcomeUpdated, nil
	}
	return OutcomeAdded, nil
}

func (r *actionRepository) Upsert(ctx context.Context, action *model.MessageAction) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	err := r.mongoRepo.Upsert(ctx, actionKey(action), bson.M{
		"$set": bson.M{
			"conversation_key": action.ConversationKey,
			"actor_id":         action.ActorID,
			"details":          action.Details,
		},
		"$setOnInsert": bson.M{"created_at": action.CreatedAt},
	})
	if err != nil {
		return fmt.Errorf("upsert action failed: %w", err)
	}
	return nil
}

func (r *actionRepository) Append(ctx context.Context, action *model.MessageAction) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := r.mongoRepo.Create(ctx, *action); err != nil {
		return fmt.Errorf("append action failed: %w", err)
	}
	return nil
}

func (r *actionRepository) Remove(ctx context.Context, messageID primitive.ObjectID, actorID string, actionType model.ActionType) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	f := db.NewFilter().
		ObjectID("message_id", messageID).
		Eq("type", actionType)
	if actionType != model.ActionPin {
		f = f.Eq("actor_id", actorID)
	}
	removed, err := r.mongoRepo.DeleteOne(ctx, f.Build())
	if err != nil {
		return false, fmt.Errorf("remove action failed: %w", err)
	}
	return removed, nil
}

func (r *actionRepository) ForMessages(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.MessageAction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	actions, err := r.mongoRepo.FindAll(ctx, db.NewFilter().In("message_id", messageIDs).Build())
	if err != nil {
		return nil, fmt.Errorf("load actions failed: %w", err)
	}
	return actions, nil
}

func (r *actionRepository) PinsForConversation(ctx context.Context, conversationKey string) ([]model.MessageAction, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_key", conversationKey).
		Eq("type", model.ActionPin).
		Build()

	pins, err := r.mongoRepo.FindPage(ctx, filter, db.PageOptions{
		Limit:  16,
		SortBy: "created_at",
	})
	if err != nil {
		return nil, fmt.Errorf("load pins failed: %w", err)
	}
	return pins, nil
}
