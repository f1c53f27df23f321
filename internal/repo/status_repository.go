package repo

import (
	"context"
	"fmt"
	"time"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type StatusRepository interface {
	Create(ctx context.Context, status *model.DeliveryStatus) error
	// Advance moves one (message, recipient) pair forward to state. The row
	// must already exist and transitions never regress; returns whether the
	// state actually changed.
	Advance(ctx context.Context, messageID primitive.ObjectID, recipientID string, state int, at time.Time) (bool, error)
	ForMessages(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.DeliveryStatus, error)
	ForRecipient(ctx context.Context, messageIDs []primitive.ObjectID, recipientID string) ([]model.DeliveryStatus, error)
}

type statusRepository struct {
	mongoRepo *db.Repository[model.DeliveryStatus]
	logger    *zap.Logger
}

func NewStatusRepository(repo *db.Repository[model.DeliveryStatus], logger *zap.Logger) StatusRepository {
	return &statusRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (s *statusRepository) Create(ctx context.Context, status *model.DeliveryStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := s.mongoRepo.Create(ctx, *status); err != nil {
		return fmt.Errorf("create delivery status failed: %w", err)
	}
	return nil
}

func (s *statusRepository) Advance(ctx context.Context, messageID primitive.ObjectID, recipientID string, state int, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// The $lt guard makes regression impossible even under concurrent
	// updates: only a strictly earlier stage can move forward.
	filter := db.NewFilter().
		ObjectID("message_id", messageID).
		Eq("recipient_id", recipientID).
		Lt("state", state).
		Build()

	modified, err := s.mongoRepo.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"state": state, "updated_at": at},
	})
	if err != nil {
		return false, fmt.Errorf("advance delivery status failed: %w", err)
	}

	if modified > 0 {
		s.logger.Debug("delivery status advanced",
			zap.String("message_id", messageID.Hex()),
			zap.String("recipient_id", recipientID),
			zap.String("state", model.StateName(state)),
		)
	}
	return modified > 0, nil
}

func (s *statusRepository) ForMessages(ctx context.Context, messageIDs []primitive.ObjectID) ([]model.DeliveryStatus, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	statuses, err := s.mongoRepo.FindAll(ctx, db.NewFilter().In("message_id", messageIDs).Build())
	if err != nil {
		return nil, fmt.Errorf("load delivery statuses failed: %w", err)
	}
	return statuses, nil
}

func (s *statusRepository) ForRecipient(ctx context.Context, messageIDs []primitive.ObjectID, recipientID string) ([]model.DeliveryStatus, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		In("message_id", messageIDs).
		Eq("recipient_id", recipientID).
		Build()

	statuses, err := s.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load recipient statuses failed: %w", err)
	}
	return statuses, nil
}
