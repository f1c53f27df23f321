package service

import (
	"context"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/model"
	"Meetzy/internal/monitoring"
	"Meetzy/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReadReceipts applies delivery-state transitions for a viewer. Transitions
// are monotonic and require the status row to exist, so a seen can never be
// applied before the corresponding sent was recorded.
type ReadReceipts struct {
	messages  repo.MessageRepository
	statuses  repo.StatusRepository
	scheduler *DisappearingScheduler
	notifier  Notifier
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

func NewReadReceipts(
	messages repo.MessageRepository,
	statuses repo.StatusRepository,
	scheduler *DisappearingScheduler,
	notifier Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *ReadReceipts {
	return &ReadReceipts{
		messages:  messages,
		statuses:  statuses,
		scheduler: scheduler,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// MarkDelivered advances the viewer's status rows to delivered, typically on
// session connect.
func (r *ReadReceipts) MarkDelivered(ctx context.Context, viewerID string, messageIDs []primitive.ObjectID) error {
	now := time.Now().UTC()
	for _, id := range messageIDs {
		if _, err := r.statuses.Advance(ctx, id, viewerID, model.StateDelivered, now); err != nil {
			r.logger.Warn("delivered transition failed",
				zap.String("message_id", id.Hex()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// MarkSeen advances the viewer's status rows to seen, arms disappearing
// expiry for the newly-seen messages and announces the read to the authors.
func (r *ReadReceipts) MarkSeen(ctx context.Context, viewerID string, messageIDs []primitive.ObjectID) error {
	if len(messageIDs) == 0 {
		return Validation("MESSAGE_IDS_REQUIRED", "at least one message id is required")
	}

	now := time.Now().UTC()
	newlySeen := make([]primitive.ObjectID, 0, len(messageIDs))
	for _, id := range messageIDs {
		changed, err := r.statuses.Advance(ctx, id, viewerID, model.StateSeen, now)
		if err != nil {
			r.logger.Warn("seen transition failed",
				zap.String("message_id", id.Hex()),
				zap.Error(err),
			)
			continue
		}
		if changed {
			newlySeen = append(newlySeen, id)
		}
	}
	if len(newlySeen) == 0 {
		return nil
	}

	msgs, err := r.messages.FindByIDs(ctx, newlySeen)
	if err != nil {
		return Internal(err, "failed to load seen messages")
	}

	// Group by conversation so authors get one read event each.
	type convGroup struct {
		hexIDs  []string
		senders map[string]struct{}
		groupID string
	}
	groups := make(map[string]*convGroup)
	for i := range msgs {
		key := msgs[i].ConversationKey(viewerID)
		g, ok := groups[key]
		if !ok {
			g = &convGroup{senders: make(map[string]struct{})}
			if msgs[i].Target.Kind == model.TargetGroup {
				g.groupID = msgs[i].Target.ID
			}
			groups[key] = g
		}
		g.hexIDs = append(g.hexIDs, msgs[i].ID.Hex())
		g.senders[msgs[i].SenderID] = struct{}{}
	}

	r.scheduler.OnSeen(ctx, newlySeen, now)

	for key, g := range groups {
		payload := event.ReadPayload{
			ConversationKey: key,
			ReaderID:        viewerID,
			MessageIDs:      g.hexIDs,
			ReadAt:          now.Format(time.RFC3339),
		}
		ev := event.New(event.EventMessagesRead, payload)
		r.metrics.EventsPublished.WithLabelValues(event.EventMessagesRead).Inc()
		if g.groupID != "" {
			r.notifier.PublishToGroup(g.groupID, ev)
			continue
		}
		for sender := range g.senders {
			r.notifier.PublishToUser(sender, ev)
		}
	}
	return nil
}
