package service

import (
	"context"
	"time"

	"Meetzy/internal/model"
	"Meetzy/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DisappearingScheduler commits expiry timestamps for disappearing messages.
// It runs on the viewer's read event: the first seen transition of a message
// arms its expiry exactly once.
type DisappearingScheduler struct {
	disappearing repo.DisappearingRepository
	logger       *zap.Logger
}

func NewDisappearingScheduler(disappearing repo.DisappearingRepository, logger *zap.Logger) *DisappearingScheduler {
	return &DisappearingScheduler{
		disappearing: disappearing,
		logger:       logger,
	}
}

// OnSeen processes newly-seen messages. Messages without a disappearing
// instance, or whose expiry is already committed, are skipped. The setting
// is resolved through each instance's own conversation key, so broadcast
// copies armed under the list key expire no matter which view the read came
// from. The after_seen class expires immediately; fixed classes expire
// now + expire_after_seconds. The transition is one-shot and never
// re-computed.
func (s *DisappearingScheduler) OnSeen(ctx context.Context, messageIDs []primitive.ObjectID, now time.Time) {
	if len(messageIDs) == 0 {
		return
	}

	instances, err := s.disappearing.Instances(ctx, messageIDs)
	if err != nil {
		s.logger.Warn("disappearing instance lookup failed", zap.Error(err))
		return
	}
	if len(instances) == 0 {
		return
	}

	settings := make(map[string]*model.DisappearingSetting)
	for i := range instances {
		inst := &instances[i]
		if inst.ExpireAt != nil {
			continue
		}

		setting, cached := settings[inst.ConversationKey]
		if !cached {
			setting, err = s.disappearing.Setting(ctx, inst.ConversationKey)
			if err != nil {
				s.logger.Warn("disappearing setting lookup failed",
					zap.String("conversation_key", inst.ConversationKey),
					zap.Error(err),
				)
				continue
			}
			settings[inst.ConversationKey] = setting
		}
		if setting == nil || !setting.Enabled {
			continue
		}

		expireAt := now
		if setting.ExpireAfterSeconds != nil {
			expireAt = now.Add(time.Duration(*setting.ExpireAfterSeconds) * time.Second)
		}

		committed, err := s.disappearing.TriggerExpiry(ctx, inst.MessageID, expireAt)
		if err != nil {
			s.logger.Warn("expiry commit failed",
				zap.String("message_id", inst.MessageID.Hex()),
				zap.Error(err),
			)
			continue
		}
		if committed {
			s.logger.Debug("disappearing expiry armed",
				zap.String("message_id", inst.MessageID.Hex()),
				zap.String("duration", setting.Duration),
				zap.Time("expire_at", expireAt),
			)
		}
	}
}

// UpdateSetting stores the per-conversation disappearing configuration.
func (s *DisappearingScheduler) UpdateSetting(ctx context.Context, conversationKey string, enabled bool, duration string) (*model.DisappearingSetting, error) {
	switch duration {
	case model.Disappear24h, model.Disappear7d, model.Disappear90d, model.DisappearAfterSeen:
	case "":
		if enabled {
			return nil, Validation("DURATION_REQUIRED", "duration class is required")
		}
	default:
		return nil, Validation("INVALID_DURATION", "unknown duration class")
	}

	setting := &model.DisappearingSetting{
		ConversationKey:    conversationKey,
		Enabled:            enabled,
		Duration:           duration,
		ExpireAfterSeconds: model.DurationSeconds(duration),
		UpdatedAt:          time.Now().UTC(),
	}
	if err := s.disappearing.SaveSetting(ctx, setting); err != nil {
		return nil, Internal(err, "failed to save disappearing setting")
	}
	return setting, nil
}
