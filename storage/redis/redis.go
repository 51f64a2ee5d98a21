package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tonic56/coinfolio/internal/config"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/redis/go-redis/v9"
)

type Message struct {
	Channel string
	Payload string
}

// Client wraps a single redis connection used for the market cache, score
// publishing and score subscriptions.
type Client struct {
	rdb          *redis.Client
	scoreChannel string
	log          *slog.Logger

	Messages      chan Message
	subscriptions map[string]*redis.PubSub
	mu            sync.Mutex
}

func New(log *slog.Logger, cfg config.RedisConfig) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		scoreChannel:  cfg.ScoreChannel,
		log:           log,
		Messages:      make(chan Message, 1000),
		subscriptions: make(map[string]*redis.PubSub),
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get decodes a cached JSON value into dst. A missing key is not an error.
func (c *Client) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *Client) PublishScore(ctx context.Context, update models.ScoreUpdate) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, c.scoreChannel, raw).Err()
}

// SubscribeScores forwards score updates to Messages until ctx is done.
func (c *Client) SubscribeScores(ctx context.Context) error {
	return c.Subscribe(ctx, c.scoreChannel)
}

func (c *Client) Subscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subscriptions[channel]; exists {
		return nil
	}

	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		c.log.Error("failed to subscribe to redis channel", "channel", channel, "error", err)
		return err
	}

	c.subscriptions[channel] = pubsub
	c.log.Info("subscribed to redis channel", "channel", channel)

	go c.listener(ctx, pubsub)

	return nil
}

func (c *Client) listener(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.log.Warn("redis pubsub channel closed")
				return
			}

			select {
			case c.Messages <- Message{Channel: msg.Channel, Payload: msg.Payload}:
			default:
				c.log.Warn("messages channel full, dropping message", "channel", msg.Channel)
			}
		}
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for channel, pubsub := range c.subscriptions {
		if err := pubsub.Close(); err != nil {
			c.log.Warn("error closing pubsub", "channel", channel, "error", err)
		}
	}
	c.subscriptions = map[string]*redis.PubSub{}

	if err := c.rdb.Close(); err != nil {
		c.log.Warn("error closing redis client", "error", err)
	}
	c.log.Info("redis client closed")
}
