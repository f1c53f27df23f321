package configuration

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	URI                    string `json:"uri"`
	Database               string `json:"database"`
	MessagesCollection     string `json:"messagesCollection"`
	StatusesCollection     string `json:"statusesCollection"`
	ActionsCollection      string `json:"actionsCollection"`
	PreferencesCollection  string `json:"preferencesCollection"`
	BlocksCollection       string `json:"blocksCollection"`
	DisappearingCollection string `json:"disappearingCollection"`
	InstancesCollection    string `json:"instancesCollection"`
	GroupsCollection       string `json:"groupsCollection"`
	BroadcastsCollection   string `json:"broadcastsCollection"`
	UsersCollection        string `json:"usersCollection"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	SocketRoute    string   `json:"socket_route"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
}

// Service owns the loaded configuration. It is injected where config is
// needed; Refresh re-reads the file and env on demand. There is no
// package-level config state.
type Service struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewService loads the config file at path, applies env overrides and
// returns the injectable service. A .env file next to the process, when
// present, is folded into the environment first.
func NewService(path string) (*Service, error) {
	_ = godotenv.Load()

	s := &Service{path: path}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current config snapshot.
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Refresh re-reads the config file and re-applies env overrides.
func (s *Service) Refresh() error {
	file, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", s.path, err)
	}

	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", s.path, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	s.mu.Lock()
	s.cfg = &cfg
	s.mu.Unlock()
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEETZY_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MEETZY_MONGO_DATABASE"); v != "" {
		cfg.Mongo.Database = v
	}
	if v := os.Getenv("MEETZY_APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.AppPort = port
		}
	}
	if v := os.Getenv("MEETZY_SOCKET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.SocketPort = port
		}
	}
}

func applyDefaults(cfg *Config) {
	defaults := map[*string]string{
		&cfg.Mongo.MessagesCollection:     "messages",
		&cfg.Mongo.StatusesCollection:     "message_statuses",
		&cfg.Mongo.ActionsCollection:      "message_actions",
		&cfg.Mongo.PreferencesCollection:  "chat_preferences",
		&cfg.Mongo.BlocksCollection:       "blocks",
		&cfg.Mongo.DisappearingCollection: "disappearing_settings",
		&cfg.Mongo.InstancesCollection:    "message_disappearing",
		&cfg.Mongo.GroupsCollection:       "groups",
		&cfg.Mongo.BroadcastsCollection:   "broadcast_lists",
		&cfg.Mongo.UsersCollection:        "users",
	}
	for field, value := range defaults {
		if *field == "" {
			*field = value
		}
	}
	if cfg.Server.SocketRoute == "" {
		cfg.Server.SocketRoute = "ws"
	}
	if cfg.Server.AppPort == 0 {
		cfg.Server.AppPort = 8080
	}
	if cfg.Server.SocketPort == 0 {
		cfg.Server.SocketPort = 8081
	}
}
