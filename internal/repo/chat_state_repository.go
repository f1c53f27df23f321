package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ChatStateRepository interface {
	Preference(ctx context.Context, userID, conversationKey string) (*model.ChatPreference, error)
	// RaiseClearMarker moves the clear marker forward. $max keeps it
	// monotonic: a concurrent later clear can never be undone by an earlier
	// one.
	RaiseClearMarker(ctx context.Context, userID, conversationKey string, at time.Time) error
	// RaiseGlobalClearMarker is the clear-all operation: it raises the
	// marker of the pseudo conversation "*", which floors every
	// conversation of the user.
	RaiseGlobalClearMarker(ctx context.Context, userID string, at time.Time) error
	SoftDelete(ctx context.Context, userID, conversationKey string, at time.Time) error
	// Revive clears the soft-delete marker so a previously hidden
	// conversation reappears on the next send.
	Revive(ctx context.Context, userID, conversationKey string) error
	SetArchived(ctx context.Context, userID, conversationKey string, archived bool) error
	SetChatPinned(ctx context.Context, userID, conversationKey string, pinned bool) error
	SetFavorite(ctx context.Context, userID, conversationKey string, favorite bool) error
	SetMuted(ctx context.Context, userID, conversationKey string, muted bool) error
	SetLock(ctx context.Context, userID, conversationKey string, pinHash string) error
}

type chatStateRepository struct {
	mongoRepo *db.Repository[model.ChatPreference]
	logger    *zap.Logger
}

func NewChatStateRepository(repo *db.Repository[model.ChatPreference], logger *zap.Logger) ChatStateRepository {
	return &chatStateRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func prefKey(userID, conversationKey string) bson.M {
	return db.NewFilter().
		Eq("user_id", userID).
		Eq("conversation_key", conversationKey).
		Build()
}

func (r *chatStateRepository) Preference(ctx context.Context, userID, conversationKey string) (*model.ChatPreference, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	pref, err := r.mongoRepo.FindOne(ctx, prefKey(userID, conversationKey))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("load chat preference failed: %w", err)
	}
	return pref, nil
}

func (r *chatStateRepository) RaiseClearMarker(ctx context.Context, userID, conversationKey string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	err := r.mongoRepo.Upsert(ctx, prefKey(userID, conversationKey), bson.M{
		"$max": bson.M{"cleared_at": at},
		"$set": bson.M{"updated_at": at},
	})
	if err != nil {
		return fmt.Errorf("raise clear marker failed: %w", err)
	}

	r.logger.Debug("clear marker raised",
		zap.String("user_id", userID),
		zap.String("conversation_key", conversationKey),
		zap.Time("cleared_at", at),
	)
	return nil
}

func (r *chatStateRepository) RaiseGlobalClearMarker(ctx context.Context, userID string, at time.Time) error {
	return r.RaiseClearMarker(ctx, userID, model.GlobalConversationKey, at)
}

func (r *chatStateRepository) SoftDelete(ctx context.Context, userID, conversationKey string, at time.Time) error {
	return r.setFields(ctx, userID, conversationKey, bson.M{"deleted_at": at})
}

func (r *chatStateRepository) Revive(ctx context.Context, userID, conversationKey string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	err := r.mongoRepo.Upsert(ctx, prefKey(userID, conversationKey), bson.M{
		"$unset": bson.M{"deleted_at": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("revive conversation failed: %w", err)
	}
	return nil
}

func (r *chatStateRepository) SetArchived(ctx context.Context, userID, conversationKey string, archived bool) error {
	return r.setFields(ctx, userID, conversationKey, bson.M{"archived": archived})
}

func (r *chatStateRepository) SetChatPinned(ctx context.Context, userID, conversationKey string, pinned bool) error {
	return r.setFields(ctx, userID, conversationKey, bson.M{"pinned": pinned})
}

func (r *chatStateRepository) SetFavorite(ctx context.Context, userID, conversationKey string, favorite bool) error {
	return r.setFields(ctx, userID, conversationKey, bson.M{"favorite": favorite})
}

func (r *chatStateRepository) SetMuted(ctx context.Context, userID, conversationKey string, muted bool) error {
	return r.setFields(ctx, userID, conversationKey, bson.M{"muted": muted})
}

func (r *chatStateRepository) SetLock(ctx context.Context, userID, conversationKey string, pinHash string) error {
	if pinHash == "" {
		return r.setFields(ctx, userID, conversationKey, bson.M{"locked": false, "pin_hash": ""})
	}
	return r.setFields(ctx, userID, conversationKey, bson.M{"locked": true, "pin_hash": pinHash})
}

func (r *chatStateRepository) setFields(ctx context.Context, userID, conversationKey string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	fields["updated_at"] = time.Now().UTC()
	err := r.mongoRepo.Upsert(ctx, prefKey(userID, conversationKey), bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update chat preference failed: %w", err)
	}
	return nil
}
