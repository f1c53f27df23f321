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

var (
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrMissingTarget    = errors.New("invalid message: target is required")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error)
	FindPage(ctx context.Context, filter bson.M, offset, limit int64) ([]model.Message, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) error
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// Insert persists one message document, retrying transient mongo failures
// with exponential backoff.
func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (primitive.ObjectID, error) {
	if err := m.validateMessage(msg); err != nil {
		return primitive.NilObjectID, err
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return primitive.NilObjectID, err
			}
		}

		id, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			m.logger.Debug("message inserted",
				zap.String("message_id", id.Hex()),
				zap.String("target_kind", string(msg.Target.Kind)),
				zap.Int("attempt", attempt+1),
			)
			return id, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("target_kind", string(msg.Target.Kind)),
	)

	return primitive.NilObjectID, fmt.Errorf("insert message failed: %w", lastErr)
}

func (m *messageRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find message failed: %w", err)
	}
	return msg, nil
}

func (m *messageRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().In("_id", ids).Build()
	msgs, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find messages failed: %w", err)
	}
	return msgs, nil
}

// FindPage fetches one feed page ordered by creation time descending.
func (m *messageRepository) FindPage(ctx context.Context, filter bson.M, offset, limit int64) ([]model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msgs, err := m.mongoRepo.FindPage(ctx, filter, db.PageOptions{
		Offset:   offset,
		Limit:    limit,
		SortBy:   "created_at",
		SortDesc: true,
	})
	if err != nil {
		return nil, m.handleReadError(err)
	}

	m.logger.Debug("messages page fetched",
		zap.Int("count", len(msgs)),
		zap.Int64("offset", offset),
		zap.Int64("limit", limit),
	)
	return msgs, nil
}

// UpdateContent is the only in-place message mutation; everything else is
// derived from the action ledger.
func (m *messageRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) error {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := m.mongoRepo.UpdateOne(ctx,
		db.NewFilter().ObjectID("_id", id).Build(),
		bson.M{"$set": bson.M{"content": content, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("update message content failed: %w", err)
	}
	return nil
}

func (m *messageRepository) validateMessage(msg *model.Message) error {
	if msg == nil {
		return ErrInvalidMessage
	}
	if msg.Target.ID == "" {
		return ErrMissingTarget
	}
	return nil
}

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *messageRepository) handleReadError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrOperationTimeout
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("filter messages failed: %w", err)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
