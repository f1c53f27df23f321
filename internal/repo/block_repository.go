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

type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID string, at time.Time) error
	Unblock(ctx context.Context, blockerID, blockedID string) (bool, error)
	// Get returns the block record of blocker against blocked, nil if none.
	Get(ctx context.Context, blockerID, blockedID string) (*model.Block, error)
	// BlockedBySet reports which of the given users have blocked the sender.
	BlockedBySet(ctx context.Context, senderID string, userIDs []string) (map[string]bool, error)
}

type blockRepository struct {
	mongoRepo *db.Repository[model.Block]
	logger    *zap.Logger
}

func NewBlockRepository(repo *db.Repository[model.Block], logger *zap.Logger) BlockRepository {
	return &blockRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func blockKey(blockerID, blockedID string) bson.M {
	return db.NewFilter().
		Eq("blocker_id", blockerID).
		Eq("blocked_id", blockedID).
		Build()
}

func (r *blockRepository) Block(ctx context.Context, blockerID, blockedID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// Idempotent: re-blocking keeps the original boundary timestamp.
	err := r.mongoRepo.Upsert(ctx, blockKey(blockerID, blockedID), bson.M{
		"$setOnInsert": bson.M{"created_at": at},
	})
	if err != nil {
		return fmt.Errorf("block failed: %w", err)
	}

	r.logger.Info("user blocked",
		zap.String("blocker_id", blockerID),
		zap.String("blocked_id", blockedID),
	)
	return nil
}

func (r *blockRepository) Unblock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	removed, err := r.mongoRepo.DeleteOne(ctx, blockKey(blockerID, blockedID))
	if err != nil {
		return false, fmt.Errorf("unblock failed: %w", err)
	}
	return removed, nil
}

func (r *blockRepository) Get(ctx context.Context, blockerID, blockedID string) (*model.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	block, err := r.mongoRepo.FindOne(ctx, blockKey(blockerID, blockedID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("load block failed: %w", err)
	}
	return block, nil
}

func (r *blockRepository) BlockedBySet(ctx context.Context, senderID string, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		In("blocker_id", userIDs).
		Eq("blocked_id", senderID).
		Build()

	blocks, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load block set failed: %w", err)
	}

	set := make(map[string]bool, len(blocks))
	for i := range blocks {
		set[blocks[i].BlockerID] = true
	}
	return set, nil
}
