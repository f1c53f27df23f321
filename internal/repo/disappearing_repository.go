package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type DisappearingRepository interface {
	Setting(ctx context.Context, conversationKey string) (*model.DisappearingSetting, error)
	SaveSetting(ctx context.Context, setting *model.DisappearingSetting) error
	CreateInstance(ctx context.Context, instance *model.MessageDisappearing) error
	Instances(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.MessageDisappearing, error)
	// TriggerExpiry commits expire_at once. The nil guard makes the
	// transition one-shot: a second read never re-computes it.
	TriggerExpiry(ctx context.Context, messageID primitive.ObjectID, expireAt time.Time) (bool, error)
}

type disappearingRepository struct {
	settings  *db.Repository[model.DisappearingSetting]
	instances *db.Repository[model.MessageDisappearing]
	logger    *zap.Logger
}

func NewDisappearingRepository(
	settings *db.Repository[model.DisappearingSetting],
	instances *db.Repository[model.MessageDisappearing],
	logger *zap.Logger,
) DisappearingRepository {
	return &disappearingRepository{
		settings:  settings,
		instances: instances,
		logger:    logger,
	}
}

func (r *disappearingRepository) Setting(ctx context.Context, conversationKey string) (*model.DisappearingSetting, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	setting, err := r.settings.FindOne(ctx, db.NewFilter().Eq("conversation_key", conversationKey).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("load disappearing setting failed: %w", err)
	}
	return setting, nil
}

func (r *disappearingRepository) SaveSetting(ctx context.Context, setting *model.DisappearingSetting) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	err := r.settings.Upsert(ctx,
		db.NewFilter().Eq("conversation_key", setting.ConversationKey).Build(),
		bson.M{"$set": bson.M{
			"enabled":              setting.Enabled,
			"duration":             setting.Duration,
			"expire_after_seconds": setting.ExpireAfterSeconds,
			"updated_at":           setting.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("save disappearing setting failed: %w", err)
	}
	return nil
}

func (r *disappearingRepository) CreateInstance(ctx context.Context, instance *model.MessageDisappearing) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := r.instances.Create(ctx, *instance); err != nil {
		return fmt.Errorf("create disappearing instance failed: %w", err)
	}
	return nil
}

func (r *disappearingRepository) Instances(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.MessageDisappearing, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	instances, err := r.instances.FindAll(ctx, db.NewFilter().In("message_id", messageIDs).Build())
	if err != nil {
		return nil, fmt.Errorf("load disappearing instances failed: %w", err)
	}
	return instances, nil
}

func (r *disappearingRepository) TriggerExpiry(ctx context.Context, messageID primitive.ObjectID, expireAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("message_id", messageID).
		Null("expire_at").
		Build()

	modified, err := r.instances.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"expire_at": expireAt},
	})
	if err != nil {
		return false, fmt.Errorf("trigger expiry failed: %w", err)
	}

	if modified > 0 {
		r.logger.Debug("disappearing expiry committed",
			zap.String("message_id", messageID.Hex()),
			zap.Time("expire_at", expireAt),
		)
	}
	return modified > 0, nil
}
