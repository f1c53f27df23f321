package repo

import (
	"context"
	"errors"
	"fmt"

	"Meetzy/internal/db"
	"Meetzy/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository interface {
	Get(ctx context.Context, userID string) (*model.User, error)
	// Summaries loads privacy-filtered summaries keyed by user id.
	// Deactivated accounts are omitted from the result.
	Summaries(ctx context.Context, userIDs []string) (map[string]model.UserSummary, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
}

func NewUserRepository(repo *db.Repository[model.User]) UserRepository {
	return &userRepository{
		mongoRepo: repo,
	}
}

func (r *userRepository) Get(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user failed: %w", err)
	}
	return user, nil
}

func (r *userRepository) Summaries(ctx context.Context, userIDs []string) (map[string]model.UserSummary, error) {
	if len(userIDs) == 0 {
		return map[string]model.UserSummary{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		In("user_id", userIDs).
		Eq("is_active", true).
		Build()
	users, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load user summaries failed: %w", err)
	}

	summaries := make(map[string]model.UserSummary, len(users))
	for i := range users {
		summaries[users[i].UserID] = users[i].Summary()
	}
	return summaries, nil
}
