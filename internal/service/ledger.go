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

// MaxPinsPerConversation bounds concurrently pinned messages; admitting a
// new pin beyond the bound evicts the oldest one first.
const MaxPinsPerConversation = 3

// ActionOutcome reports what a ledger write did.
type ActionOutcome struct {
	MessageID       string `json:"messageId"`
	ConversationKey string `json:"conversationKey"`
	Action          string `json:"action"` // added, updated, removed
}

// ActionLedger is the append/override log of per-message, per-actor actions
// and the single source of truth for derived message state.
type ActionLedger struct {
	messages repo.MessageRepository
	actions  repo.ActionRepository
	groups   repo.GroupRepository
	notifier Notifier
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func NewActionLedger(
	messages repo.MessageRepository,
	actions repo.ActionRepository,
	groups repo.GroupRepository,
	notifier Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *ActionLedger {
	return &ActionLedger{
		messages: messages,
		actions:  actions,
		groups:   groups,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// authorize loads the message and verifies the actor may act on it: sender
// or counterpart for direct and broadcast copies, current membership for
// groups. Every ledger write goes through here first.
func (l *ActionLedger) authorize(ctx context.Context, actorID string, messageID primitive.ObjectID) (*model.Message, error) {
	msg, err := l.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, Internal(err, "failed to load message")
	}
	if msg == nil {
		return nil, NotFound("MESSAGE_NOT_FOUND", "message does not exist")
	}

	switch msg.Target.Kind {
	case model.TargetGroup:
		group, err := l.groups.Get(ctx, msg.Target.ID)
		if err != nil {
			return nil, Internal(err, "failed to load group")
		}
		if group == nil || !group.IsCurrentMember(actorID) {
			return nil, Authorization("NOT_MEMBER", "actor is not a member of the group")
		}
	case model.TargetBroadcast:
		if actorID != msg.SenderID && actorID != msg.CopyFor {
			return nil, Authorization("NOT_PARTICIPANT", "actor has no access to the message")
		}
	default:
		if actorID != msg.SenderID && actorID != msg.Target.ID {
			return nil, Authorization("NOT_PARTICIPANT", "actor has no access to the message")
		}
	}
	return msg, nil
}

func (l *ActionLedger) ToggleStar(ctx context.Context, actorID string, messageID primitive.ObjectID) (*ActionOutcome, error) {
	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	outcome, err := l.actions.Toggle(ctx, l.entry(msg, actorID, model.ActionStar, model.ActionDetails{}))
	if err != nil {
		return nil, Internal(err, "failed to toggle star")
	}

	l.metrics.LedgerWrites.WithLabelValues(string(model.ActionStar)).Inc()
	return l.outcome(msg, actorID, outcome), nil
}

func (l *ActionLedger) ToggleReaction(ctx context.Context, actorID string, messageID primitive.ObjectID, emoji string) (*ActionOutcome, error) {
	if emoji == "" {
		return nil, Validation("EMOJI_REQUIRED", "reaction emoji is required")
	}

	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	outcome, err := l.actions.SetReaction(ctx, l.entry(msg, actorID, model.ActionReaction, model.ActionDetails{Emoji: emoji}))
	if err != nil {
		return nil, Internal(err, "failed to set reaction")
	}
	l.metrics.LedgerWrites.WithLabelValues(string(model.ActionReaction)).Inc()

	out := l.outcome(msg, actorID, outcome)
	l.publish(msg, event.EventMessageReactionUpdated, event.ReactionPayload{
		MessageID:       msg.ID.Hex(),
		ConversationKey: out.ConversationKey,
		ActorID:         actorID,
		Emoji:           emoji,
		Action:          outcome,
	})
	return out, nil
}

// RecordEdit stores the old/new content pair in the ledger and applies the
// only in-place message mutation. Only the original sender may edit.
func (l *ActionLedger) RecordEdit(ctx context.Context, actorID string, messageID primitive.ObjectID, newContent string) (*ActionOutcome, error) {
	if newContent == "" {
		return nil, Validation("EMPTY_CONTENT", "edited content cannot be empty")
	}

	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}
	if actorID != msg.SenderID {
		return nil, Authorization("NOT_SENDER", "only the sender can edit a message")
	}

	now := time.Now().UTC()
	entry := l.entry(msg, actorID, model.ActionEdit, model.ActionDetails{
		OldContent: msg.Content,
		NewContent: &newContent,
	})
	if err := l.actions.Upsert(ctx, entry); err != nil {
		return nil, Internal(err, "failed to record edit")
	}
	if err := l.messages.UpdateContent(ctx, messageID, newContent, now); err != nil {
		return nil, Internal(err, "failed to apply edit")
	}
	l.metrics.LedgerWrites.WithLabelValues(string(model.ActionEdit)).Inc()

	out := l.outcome(msg, actorID, repo.OutcomeUpdated)
	msg.Content = &newContent
	msg.UpdatedAt = now
	l.publish(msg, event.EventMessageUpdated, msg)
	return out, nil
}

// RecordPin pins a message for the whole conversation. At most
// MaxPinsPerConversation pins may coexist: the oldest one is evicted, with
// its unpin event emitted, before the new pin is admitted.
func (l *ActionLedger) RecordPin(ctx context.Context, actorID string, messageID primitive.ObjectID) (*ActionOutcome, error) {
	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	key := msg.ConversationKey(actorID)
	pins, err := l.actions.PinsForConversation(ctx, key)
	if err != nil {
		return nil, Internal(err, "failed to load pins")
	}

	live := make([]model.MessageAction, 0, len(pins))
	for i := range pins {
		if pins[i].MessageID != messageID {
			live = append(live, pins[i])
		}
	}
	if len(live) >= MaxPinsPerConversation {
		oldest := live[0] // PinsForConversation sorts by created_at ascending
		if _, err := l.actions.Remove(ctx, oldest.MessageID, oldest.ActorID, model.ActionPin); err != nil {
			return nil, Internal(err, "failed to evict oldest pin")
		}
		l.publish(msg, event.EventMessagePin, event.PinPayload{
			MessageID:       oldest.MessageID.Hex(),
			ConversationKey: key,
			ActorID:         actorID,
			Pinned:          false,
		})
		l.logger.Info("oldest pin evicted",
			zap.String("conversation_key", key),
			zap.String("message_id", oldest.MessageID.Hex()),
		)
	}

	if err := l.actions.Upsert(ctx, l.entry(msg, actorID, model.ActionPin, model.ActionDetails{})); err != nil {
		return nil, Internal(err, "failed to record pin")
	}
	l.metrics.LedgerWrites.WithLabelValues(string(model.ActionPin)).Inc()

	out := l.outcome(msg, actorID, repo.OutcomeAdded)
	l.publish(msg, event.EventMessagePin, event.PinPayload{
		MessageID:       msg.ID.Hex(),
		ConversationKey: key,
		ActorID:         actorID,
		Pinned:          true,
	})
	return out, nil
}

func (l *ActionLedger) RecordUnpin(ctx context.Context, actorID string, messageID primitive.ObjectID) (*ActionOutcome, error) {
	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	removed, err := l.actions.Remove(ctx, messageID, actorID, model.ActionPin)
	if err != nil {
		return nil, Internal(err, "failed to remove pin")
	}
	if !removed {
		return nil, NotFound("PIN_NOT_FOUND", "message is not pinned")
	}

	out := l.outcome(msg, actorID, repo.OutcomeRemoved)
	l.publish(msg, event.EventMessagePin, event.PinPayload{
		MessageID:       msg.ID.Hex(),
		ConversationKey: out.ConversationKey,
		ActorID:         actorID,
		Pinned:          false,
	})
	return out, nil
}

// RecordDelete handles both delete scopes. Delete-for-everyone is reserved
// to the original sender and permanently overrides rendering for all
// viewers; delete-for-me only affects the actor's own feed. Neither scope
// removes the message row.
func (l *ActionLedger) RecordDelete(ctx context.Context, actorID string, messageID primitive.ObjectID, scope model.DeleteScope) (*ActionOutcome, error) {
	if scope != model.DeleteForMe && scope != model.DeleteForEveryone {
		return nil, Validation("INVALID_SCOPE", "delete scope must be me or everyone")
	}

	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	key := msg.ConversationKey(actorID)
	entry := l.entry(msg, actorID, model.ActionDelete, model.ActionDetails{Scope: scope})

	var outcome string
	if scope == model.DeleteForEveryone {
		if actorID != msg.SenderID {
			return nil, Authorization("NOT_SENDER", "only the sender can delete for everyone")
		}
		// Idempotent: replaying the action keeps a single ledger entry.
		if err := l.actions.Upsert(ctx, entry); err != nil {
			return nil, Internal(err, "failed to record delete")
		}
		outcome = repo.OutcomeAdded

		payload := event.DeletePayload{
			MessageID:       msg.ID.Hex(),
			ConversationKey: key,
			Scope:           string(scope),
			DeletedBy:       actorID,
		}
		l.publish(msg, event.EventMessageDeleted, payload)
	} else {
		outcome, err = l.actions.Toggle(ctx, entry)
		if err != nil {
			return nil, Internal(err, "failed to record delete")
		}
		// Only the actor's own sessions need to know.
		l.publishToUser(actorID, event.EventMessageDeleted, event.DeletePayload{
			MessageID:       msg.ID.Hex(),
			ConversationKey: key,
			Scope:           string(scope),
			DeletedBy:       actorID,
		})
	}

	l.metrics.LedgerWrites.WithLabelValues(string(model.ActionDelete)).Inc()
	return l.outcome(msg, actorID, outcome), nil
}

// RecordForward appends a forward entry naming the destinations. The
// forwarded copies themselves are dispatched as fresh sends.
func (l *ActionLedger) RecordForward(ctx context.Context, actorID string, messageID primitive.ObjectID, forwardedTo []string) (*ActionOutcome, error) {
	if len(forwardedTo) == 0 {
		return nil, Validation("FORWARD_TARGETS_REQUIRED", "at least one forward destination is required")
	}

	msg, err := l.authorize(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}

	entry := l.entry(msg, actorID, model.ActionForward, model.ActionDetails{ForwardedTo: forwardedTo})
	if err := l.actions.Append(ctx, entry); err != nil {
		return nil, Internal(err, "failed to record forward")
	}
	l.metrics.LedgerWrites.WithLabelValues(string(model.ActionForward)).Inc()

	return l.outcome(msg, actorID, repo.OutcomeAdded), nil
}

func (l *ActionLedger) entry(msg *model.Message, actorID string, actionType model.ActionType, details model.ActionDetails) *model.MessageAction {
	return &model.MessageAction{
		MessageID:       msg.ID,
		ConversationKey: msg.ConversationKey(actorID),
		ActorID:         actorID,
		Type:            actionType,
		Details:         details,
		CreatedAt:       time.Now().UTC(),
	}
}

func (l *ActionLedger) outcome(msg *model.Message, actorID, action string) *ActionOutcome {
	return &ActionOutcome{
		MessageID:       msg.ID.Hex(),
		ConversationKey: msg.ConversationKey(actorID),
		Action:          action,
	}
}

// publish fans an event out to everyone with read access to the message.
func (l *ActionLedger) publish(msg *model.Message, name string, payload any) {
	ev := event.New(name, payload)
	l.metrics.EventsPublished.WithLabelValues(name).Inc()

	switch msg.Target.Kind {
	case model.TargetGroup:
		l.notifier.PublishToGroup(msg.Target.ID, ev)
	case model.TargetBroadcast:
		l.notifier.PublishToUser(msg.SenderID, ev)
		if msg.CopyFor != "" {
			l.notifier.PublishToUser(msg.CopyFor, ev)
		}
	default:
		l.notifier.PublishToUser(msg.SenderID, ev)
		l.notifier.PublishToUser(msg.Target.ID, ev)
	}
}

func (l *ActionLedger) publishToUser(userID, name string, payload any) {
	l.metrics.EventsPublished.WithLabelValues(name).Inc()
	l.notifier.PublishToUser(userID, event.New(name, payload))
}
