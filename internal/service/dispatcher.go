package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"Meetzy/internal/event"
	"Meetzy/internal/model"
	"Meetzy/internal/monitoring"
	"Meetzy/internal/repo"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxFanOutWorkers caps the per-send fan-out parallelism. The effective
// bound is min(recipients, maxFanOutWorkers), never unbounded.
const maxFanOutWorkers = 16

// SendInput carries one send request after transport decoding.
type SendInput struct {
	SenderID    string
	Target      SendTarget
	Type        string
	Content     *string
	Files       []model.FileRef
	ParentID    *primitive.ObjectID
	Mentions    []string
	Metadata    map[string]any
	IsEncrypted bool
}

// RecipientFailure records one isolated per-recipient write failure.
type RecipientFailure struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// SendTargetSummary is the hydrated destination descriptor on a send result.
type SendTargetSummary struct {
	Kind      model.TargetKind     `json:"kind"`
	User      *model.UserSummary   `json:"user,omitempty"`
	Group     *model.Group         `json:"group,omitempty"`
	Broadcast *model.BroadcastList `json:"broadcast,omitempty"`
}

// SendResult is the dispatch summary. A broadcast send is not atomic:
// partial success is a valid terminal state and the counts are exact.
type SendResult struct {
	Messages []model.Message    `json:"messages"`
	Sender   *model.UserSummary `json:"sender,omitempty"`
	Target   *SendTargetSummary `json:"target,omitempty"`
	Added    int                `json:"added"`
	Skipped  int                `json:"skipped"`
	Failed   int                `json:"failed"`
	Failures []RecipientFailure `json:"failures,omitempty"`
}

// DeliveryDispatcher persists message copies and delivery-status rows, and
// pushes realtime events after commit.
type DeliveryDispatcher struct {
	resolver     *ConversationResolver
	messages     repo.MessageRepository
	statuses     repo.StatusRepository
	state        repo.ChatStateRepository
	disappearing repo.DisappearingRepository
	users        repo.UserRepository
	notifier     Notifier
	metrics      *monitoring.Metrics
	logger       *zap.Logger
}

func NewDeliveryDispatcher(
	resolver *ConversationResolver,
	messages repo.MessageRepository,
	statuses repo.StatusRepository,
	state repo.ChatStateRepository,
	disappearing repo.DisappearingRepository,
	users repo.UserRepository,
	notifier Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *DeliveryDispatcher {
	return &DeliveryDispatcher{
		resolver:     resolver,
		messages:     messages,
		statuses:     statuses,
		state:        state,
		disappearing: disappearing,
		users:        users,
		notifier:     notifier,
		metrics:      metrics,
		logger:       logger,
	}
}

func (d *DeliveryDispatcher) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.Type == "" {
		in.Type = model.TypeText
	}
	if in.Type == model.TypeText && (in.Content == nil || strings.TrimSpace(*in.Content) == "") {
		return nil, Validation("EMPTY_CONTENT", "text messages require content")
	}
	if in.Type != model.TypeText && in.Content == nil && len(in.Files) == 0 {
		return nil, Validation("EMPTY_CONTENT", "message has neither content nor files")
	}

	res, err := d.resolver.Resolve(ctx, in.SenderID, in.Target)
	if err != nil {
		return nil, err
	}

	templates := d.buildTemplates(in)

	var result *SendResult
	if res.Kind == model.TargetBroadcast {
		result, err = d.sendBroadcast(ctx, in, res, templates)
	} else {
		result, err = d.sendDirectOrGroup(ctx, in, res, templates)
	}
	if err != nil {
		return nil, err
	}

	// A previously soft-deleted conversation reappears on send, for both
	// ends of a direct chat.
	d.revive(ctx, in.SenderID, res)

	d.hydrate(ctx, in.SenderID, res, result)
	return result, nil
}

// hydrate attaches the sender and target summaries to the send result so
// transport responses carry full objects, not bare ids.
func (d *DeliveryDispatcher) hydrate(ctx context.Context, senderID string, res *Resolution, result *SendResult) {
	summaries, err := d.users.Summaries(ctx, []string{senderID})
	if err != nil {
		d.logger.Warn("sender summary lookup failed", zap.Error(err))
	} else if s, ok := summaries[senderID]; ok {
		result.Sender = &s
	}
	result.Target = &SendTargetSummary{
		Kind:      res.Kind,
		User:      res.Recipient,
		Group:     res.Group,
		Broadcast: res.Broadcast,
	}
}

// Forward re-dispatches an existing message to direct destinations. Each
// copy is a fresh send owned by the forwarder; per-destination failures are
// isolated in the combined summary.
func (d *DeliveryDispatcher) Forward(ctx context.Context, actorID string, messageID primitive.ObjectID, to []string) (*SendResult, error) {
	original, err := d.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, Internal(err, "failed to load message")
	}
	if original == nil {
		return nil, NotFound("MESSAGE_NOT_FOUND", "message does not exist")
	}

	in := SendInput{
		SenderID:    actorID,
		Type:        original.Type,
		Content:     original.Content,
		IsEncrypted: original.IsEncrypted,
		Metadata: map[string]any{
			"forwarded":      true,
			"forwarded_from": original.ID.Hex(),
		},
	}
	if original.File != nil {
		in.Files = []model.FileRef{*original.File}
	}

	combined := &SendResult{}
	for _, dest := range to {
		in.Target = SendTarget{RecipientID: dest}
		res, err := d.Send(ctx, in)
		if err != nil {
			combined.Failed++
			combined.Failures = append(combined.Failures, RecipientFailure{UserID: dest, Reason: Code(err)})
			continue
		}
		combined.Messages = append(combined.Messages, res.Messages...)
		combined.Added += res.Added
		combined.Skipped += res.Skipped
		combined.Failed += res.Failed
		combined.Failures = append(combined.Failures, res.Failures...)
	}
	if combined.Added == 0 && combined.Failed > 0 {
		return combined, Conflict("FORWARD_FAILED", "no forward destination could be delivered to")
	}
	return combined, nil
}

// buildTemplates expands one send into its physical message payloads: a
// single row, or one row per uploaded file preserving order. The caption
// travels on the first file only.
func (d *DeliveryDispatcher) buildTemplates(in SendInput) []model.Message {
	now := time.Now().UTC()

	base := model.Message{
		SenderID:    in.SenderID,
		Type:        in.Type,
		Content:     in.Content,
		Metadata:    in.Metadata,
		IsEncrypted: in.IsEncrypted,
		ParentID:    in.ParentID,
		Mentions:    in.Mentions,
	}

	if len(in.Files) == 0 {
		base.CreatedAt = now
		base.UpdatedAt = now
		return []model.Message{base}
	}

	templates := make([]model.Message, 0, len(in.Files))
	for i := range in.Files {
		msg := base
		msg.File = &in.Files[i]
		if i > 0 {
			msg.Content = nil
		}
		// Strictly increasing timestamps keep the upload order stable
		// under created_at sorting.
		msg.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		msg.UpdatedAt = msg.CreatedAt
		templates = append(templates, msg)
	}
	return templates
}

func (d *DeliveryDispatcher) sendDirectOrGroup(ctx context.Context, in SendInput, res *Resolution, templates []model.Message) (*SendResult, error) {
	result := &SendResult{}

	for i := range templates {
		msg := templates[i]
		if res.Kind == model.TargetGroup {
			msg.Target = model.GroupTarget(res.GroupID)
		} else {
			msg.Target = model.DirectTarget(res.Recipients[0].UserID)
		}

		id, err := d.messages.Insert(ctx, &msg)
		if err != nil {
			d.metrics.DispatchFailures.Inc()
			d.logger.Error("message insert failed", zap.Error(err))
			result.Failed++
			result.Failures = append(result.Failures, RecipientFailure{UserID: in.SenderID, Reason: "message write failed"})
			continue
		}
		msg.ID = id
		d.metrics.MessagesDispatched.WithLabelValues(string(res.Kind)).Inc()

		d.fanOutStatuses(ctx, &msg, res.Recipients, result)
		d.armDisappearing(ctx, &msg, res.ConversationKey)
		result.Messages = append(result.Messages, msg)
	}

	if len(result.Messages) == 0 {
		return nil, Internal(nil, "no message could be persisted")
	}

	d.notifySend(res, result.Messages)
	return result, nil
}

// sendBroadcast creates one independent message copy per recipient, all
// sharing a fresh correlation key. Copies are independently addressable so
// later edits and deletes can diverge per recipient. Creation is not
// atomic: one recipient's failure never aborts the siblings.
func (d *DeliveryDispatcher) sendBroadcast(ctx context.Context, in SendInput, res *Resolution, templates []model.Message) (*SendResult, error) {
	key := uuid.New().String()

	result := &SendResult{Skipped: len(res.Skipped)}
	var mu sync.Mutex

	for i := range templates {
		template := templates[i]
		template.Target = model.BroadcastTarget(key)
		meta := make(map[string]any, len(template.Metadata)+1)
		for k, v := range template.Metadata {
			meta[k] = v
		}
		meta[model.MetaBroadcastID] = res.BroadcastID
		template.Metadata = meta

		copies := make([]model.Message, len(res.Recipients))

		g, gctx := errgroup.Group{}, ctx
		g.SetLimit(fanOutLimit(len(res.Recipients)))
		for r := range res.Recipients {
			rcpt := res.Recipients[r]
			slot := r
			g.Go(func() error {
				msg := template
				msg.CopyFor = rcpt.UserID

				id, err := d.messages.Insert(gctx, &msg)
				if err != nil {
					d.metrics.DispatchFailures.Inc()
					mu.Lock()
					result.Failed++
					result.Failures = append(result.Failures, RecipientFailure{UserID: rcpt.UserID, Reason: "copy write failed"})
					mu.Unlock()
					return nil
				}
				msg.ID = id
				d.metrics.MessagesDispatched.WithLabelValues(string(model.TargetBroadcast)).Inc()

				if err := d.statuses.Create(gctx, &model.DeliveryStatus{
					MessageID:   id,
					RecipientID: rcpt.UserID,
					State:       model.StateSent,
					IsBlocked:   rcpt.Blocked,
					UpdatedAt:   msg.CreatedAt,
				}); err != nil {
					d.logger.Warn("status row creation failed",
						zap.String("message_id", id.Hex()),
						zap.String("recipient_id", rcpt.UserID),
						zap.Error(err),
					)
				}

				// Every copy gets its own expiry instance, so a recipient's
				// read can trigger disappearing on their copy alone.
				d.armDisappearing(gctx, &msg, res.ConversationKey)

				mu.Lock()
				result.Added++
				copies[slot] = msg
				mu.Unlock()

				if !rcpt.Blocked {
					d.publishToUser(rcpt.UserID, event.EventReceiveMessage, msg)
				}
				return nil
			})
		}
		_ = g.Wait()

		// The first successfully created copy is the sender's merged feed
		// representative for this payload.
		for r := range copies {
			if !copies[r].ID.IsZero() {
				result.Messages = append(result.Messages, copies[r])
				break
			}
		}
	}

	if len(result.Messages) == 0 {
		return nil, Internal(nil, "no broadcast copy could be persisted")
	}

	for i := range result.Messages {
		d.publishToUser(in.SenderID, event.EventReceiveMessage, result.Messages[i])
	}

	d.logger.Info("broadcast dispatched",
		zap.String("broadcast_id", res.BroadcastID),
		zap.String("correlation_key", key),
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// fanOutStatuses creates one delivery-status row per resolved recipient as a
// bounded set of concurrent tasks. Failures are isolated per recipient and
// collected, never dropped and never aborting siblings.
func (d *DeliveryDispatcher) fanOutStatuses(ctx context.Context, msg *model.Message, recipients []ResolvedRecipient, result *SendResult) {
	var mu sync.Mutex

	g := errgroup.Group{}
	g.SetLimit(fanOutLimit(len(recipients)))
	for i := range recipients {
		rcpt := recipients[i]
		g.Go(func() error {
			err := d.statuses.Create(ctx, &model.DeliveryStatus{
				MessageID:   msg.ID,
				RecipientID: rcpt.UserID,
				State:       model.StateSent,
				IsBlocked:   rcpt.Blocked,
				UpdatedAt:   msg.CreatedAt,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.metrics.DispatchFailures.Inc()
				result.Failed++
				result.Failures = append(result.Failures, RecipientFailure{UserID: rcpt.UserID, Reason: "status write failed"})
				d.logger.Warn("status row creation failed",
					zap.String("message_id", msg.ID.Hex()),
					zap.String("recipient_id", rcpt.UserID),
					zap.Error(err),
				)
				return nil
			}
			result.Added++
			return nil
		})
	}
	_ = g.Wait()
}

// armDisappearing lazily creates the per-message expiry instance when the
// conversation has disappearing enabled. expire_at stays unset until the
// first seen transition.
func (d *DeliveryDispatcher) armDisappearing(ctx context.Context, msg *model.Message, conversationKey string) {
	setting, err := d.disappearing.Setting(ctx, conversationKey)
	if err != nil {
		d.logger.Warn("disappearing setting lookup failed", zap.Error(err))
		return
	}
	if setting == nil || !setting.Enabled {
		return
	}

	err = d.disappearing.CreateInstance(ctx, &model.MessageDisappearing{
		MessageID:       msg.ID,
		ConversationKey: conversationKey,
		CreatedAt:       msg.CreatedAt,
	})
	if err != nil {
		d.logger.Warn("disappearing instance creation failed",
			zap.String("message_id", msg.ID.Hex()),
			zap.Error(err),
		)
	}
}

func (d *DeliveryDispatcher) notifySend(res *Resolution, messages []model.Message) {
	for i := range messages {
		msg := messages[i]
		if res.Kind == model.TargetGroup {
			d.publishToGroup(res.GroupID, event.EventReceiveMessage, msg)
			continue
		}
		for _, rcpt := range res.Recipients {
			if !rcpt.Blocked {
				d.publishToUser(rcpt.UserID, event.EventReceiveMessage, msg)
			}
		}
		// Echo to the sender's other sessions.
		d.publishToUser(msg.SenderID, event.EventReceiveMessage, msg)
	}
}

func (d *DeliveryDispatcher) publishToUser(userID, name string, payload any) {
	d.metrics.EventsPublished.WithLabelValues(name).Inc()
	d.notifier.PublishToUser(userID, event.New(name, payload))
}

func (d *DeliveryDispatcher) publishToGroup(groupID, name string, payload any) {
	d.metrics.EventsPublished.WithLabelValues(name).Inc()
	d.notifier.PublishToGroup(groupID, event.New(name, payload))
}

func (d *DeliveryDispatcher) revive(ctx context.Context, senderID string, res *Resolution) {
	if err := d.state.Revive(ctx, senderID, res.ConversationKey); err != nil {
		d.logger.Warn("revive failed", zap.Error(err))
	}
	if res.Kind == model.TargetDirect && len(res.Recipients) == 1 {
		if err := d.state.Revive(ctx, res.Recipients[0].UserID, res.ConversationKey); err != nil {
			d.logger.Warn("revive failed", zap.Error(err))
		}
	}
}

func fanOutLimit(recipients int) int {
	if recipients < 1 {
		return 1
	}
	if recipients > maxFanOutWorkers {
		return maxFanOutWorkers
	}
	return recipients
}
