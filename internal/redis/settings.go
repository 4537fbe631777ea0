package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/player-console/internal/config"
	"github.com/redis/go-redis/v9"
)

// SettingsStore persists console settings in a Redis hash. It satisfies
// credentials.Backend.
type SettingsStore struct {
	client    *redis.Client
	namespace string
	logger    *slog.Logger
}

// NewSettingsStore connects to Redis and verifies the connection
func NewSettingsStore(cfg *config.RedisConfig, namespace string, logger *slog.Logger) (*SettingsStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewSettingsStoreWithClient(client, namespace, logger), nil
}

// NewSettingsStoreWithClient wraps an existing client
func NewSettingsStoreWithClient(client *redis.Client, namespace string, logger *slog.Logger) *SettingsStore {
	return &SettingsStore{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// Close closes the Redis connection
func (s *SettingsStore) Close() error {
	return s.client.Close()
}

// settingsKey returns the Redis key for the settings hash
func (s *SettingsStore) settingsKey() string {
	return fmt.Sprintf("%s:settings", s.namespace)
}

// Load returns every persisted field
func (s *SettingsStore) Load(ctx context.Context) (map[string]string, error) {
	result, err := s.client.HGetAll(ctx, s.settingsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return result, nil
}

// Save writes fields into the settings hash in one round trip. Empty values
// delete their field.
func (s *SettingsStore) Save(ctx context.Context, fields map[string]string) error {
	key := s.settingsKey()
	pipe := s.client.TxPipeline()

	for field, value := range fields {
		if value == "" {
			pipe.HDel(ctx, key, field)
			continue
		}
		pipe.HSet(ctx, key, field, value)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	s.logger.Debug("settings saved", "key", key, "fields", len(fields))
	return nil
}
