package configuration

import (
	"context"
	"fmt"
	"os"
	"time"

	"Meetzy/internal/db"
	"Meetzy/internal/handler"
	"Meetzy/internal/hub"
	"Meetzy/internal/model"
	"Meetzy/internal/monitoring"
	"Meetzy/internal/repo"
	"Meetzy/internal/service"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	MessageHandler handler.MessageHandler
	ChatHandler    handler.ChatHandler
	MonitorHandler handler.MonitorHandler
	Hub            *hub.Hub
	Config         *Service
	Logger         *zap.Logger
	Metrics        *monitoring.Metrics

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("MEETZY_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}

	configService, err := NewService(configPath)
	if err != nil {
		return nil, err
	}
	config := configService.Get()

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.URI, config.Mongo.Database)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	messageRepo := repo.NewMessageRepository(
		db.NewRepository[model.Message](con, config.Mongo.MessagesCollection), logger)
	statusRepo := repo.NewStatusRepository(
		db.NewRepository[model.DeliveryStatus](con, config.Mongo.StatusesCollection), logger)
	actionRepo := repo.NewActionRepository(
		db.NewRepository[model.MessageAction](con, config.Mongo.ActionsCollection), logger)
	stateRepo := repo.NewChatStateRepository(
		db.NewRepository[model.ChatPreference](con, config.Mongo.PreferencesCollection), logger)
	blockRepo := repo.NewBlockRepository(
		db.NewRepository[model.Block](con, config.Mongo.BlocksCollection), logger)
	disappearingRepo := repo.NewDisappearingRepository(
		db.NewRepository[model.DisappearingSetting](con, config.Mongo.DisappearingCollection),
		db.NewRepository[model.MessageDisappearing](con, config.Mongo.InstancesCollection),
		logger)
	groupRepo := repo.NewGroupRepository(
		db.NewRepository[model.Group](con, config.Mongo.GroupsCollection), logger)
	broadcastRepo := repo.NewBroadcastRepository(
		db.NewRepository[model.BroadcastList](con, config.Mongo.BroadcastsCollection), logger)
	userRepo := repo.NewUserRepository(
		db.NewRepository[model.User](con, config.Mongo.UsersCollection))

	memberLookup := func(ctx context.Context, groupID string) ([]string, error) {
		group, err := groupRepo.Get(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return nil, nil
		}
		return group.CurrentMemberIDs(), nil
	}

	h := hub.NewHub(memberLookup, metrics, config.Server.AllowedOrigins, logger)

	resolver := service.NewConversationResolver(groupRepo, broadcastRepo, blockRepo, userRepo, logger)
	scheduler := service.NewDisappearingScheduler(disappearingRepo, logger)
	dispatcher := service.NewDeliveryDispatcher(
		resolver, messageRepo, statusRepo, stateRepo, disappearingRepo, userRepo, h, metrics, logger)
	ledger := service.NewActionLedger(messageRepo, actionRepo, groupRepo, h, metrics, logger)
	visibility := service.NewVisibilityFilter(
		messageRepo, statusRepo, actionRepo, stateRepo, blockRepo,
		disappearingRepo, groupRepo, broadcastRepo, userRepo, logger)
	receipts := service.NewReadReceipts(messageRepo, statusRepo, scheduler, h, metrics, logger)
	chatState := service.NewChatState(stateRepo, blockRepo, h, metrics, logger)

	// Session delivery acks flow back into the receipt pipeline.
	h.OnDelivered = func(ctx context.Context, userID string, messageIDs []string) {
		ids := make([]primitive.ObjectID, 0, len(messageIDs))
		for _, hex := range messageIDs {
			if id, err := primitive.ObjectIDFromHex(hex); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return
		}
		if err := receipts.MarkDelivered(ctx, userID, ids); err != nil {
			logger.Warn("delivered ack failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	messageHandler := handler.NewMessageHandler(dispatcher, ledger, visibility, receipts, logger)
	chatHandler := handler.NewChatHandler(chatState, scheduler, logger)
	monitorHandler := handler.NewMonitorHandler(hub.NewMonitorService(h))

	return &Container{
		MessageHandler: messageHandler,
		ChatHandler:    chatHandler,
		MonitorHandler: monitorHandler,
		Hub:            h,
		Config:         configService,
		Logger:         logger,
		Metrics:        metrics,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
