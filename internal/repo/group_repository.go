package repo

import (
	"context"
	"errors"
	"fmt"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type GroupRepository interface {
	Get(ctx context.Context, groupID string) (*model.Group, error)
}

type groupRepository struct {
	mongoRepo *db.Repository[model.Group]
	logger    *zap.Logger
}

func NewGroupRepository(repo *db.Repository[model.Group], logger *zap.Logger) GroupRepository {
	return &groupRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *groupRepository) Get(ctx context.Context, groupID string) (*model.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(groupID)
	if err != nil {
		return nil, fmt.Errorf("invalid group id format: %w", err)
	}

	group, err := r.mongoRepo.FindByID(ctx, objectID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("group not found", zap.String("group_id", groupID))
			return nil, nil
		}
		return nil, fmt.Errorf("load group failed: %w", err)
	}
	return group, nil
}

type BroadcastRepository interface {
	Get(ctx context.Context, listID string) (*model.BroadcastList, error)
}

type broadcastRepository struct {
	mongoRepo *db.Repository[model.BroadcastList]
	logger    *zap.Logger
}

func NewBroadcastRepository(repo *db.Repository[model.BroadcastList], logger *zap.Logger) BroadcastRepository {
	return &broadcastRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *broadcastRepository) Get(ctx context.Context, listID string) (*model.BroadcastList, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(listID)
	if err != nil {
		return nil, fmt.Errorf("invalid broadcast list id format: %w", err)
	}

	list, err := r.mongoRepo.FindByID(ctx, objectID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("broadcast list not found", zap.String("list_id", listID))
			return nil, nil
		}
		return nil, fmt.Errorf("load broadcast list failed: %w", err)
	}
	return list, nil
}
