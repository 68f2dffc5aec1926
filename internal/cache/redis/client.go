package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/pkg/logger"
)

const answerKeyPrefix = "answer:"

// Client caches answered questions so repeated asks skip the whole SQL
// pipeline. The cache is keyed by question hash and wiped on every dataset
// upload, since old answers are meaningless against new data.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Raw exposes the underlying connection for collaborators that keep their
// own key namespace, like the session store.
func (c *Client) Raw() *redis.Client {
	return c.client
}

func (c *Client) SetAnswer(ctx context.Context, answerHash string, response interface{}, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, answerKeyPrefix+answerHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set answer cache: %w", err)
	}

	logger.Debug("Answer cached", zap.String("answer_hash", answerHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetAnswer(ctx context.Context, answerHash string, response interface{}) (bool, error) {
	data, err := c.client.Get(ctx, answerKeyPrefix+answerHash).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("answer").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get answer cache: %w", err)
	}

	if err := json.Unmarshal(data, response); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	metrics.CacheHits.WithLabelValues("answer").Inc()
	logger.Debug("Answer cache hit", zap.String("answer_hash", answerHash))
	return true, nil
}

// InvalidateAnswers deletes every cached answer. Called when a new dataset
// replaces the old one.
func (c *Client) InvalidateAnswers(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, answerKeyPrefix+"*", 100).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cached answer: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan answer keys: %w", err)
	}

	logger.Info("Answer cache invalidated", zap.Int("deleted", deleted))
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
