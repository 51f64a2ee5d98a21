package kaffka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tonic56/coinfolio/internal/config"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/segmentio/kafka-go"
)

const fetchRetryDelay = time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	retryDelay time.Duration
	log        *slog.Logger
}

func NewConsumer(log *slog.Logger, cfg config.KafkaConfig) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		retryDelay: fetchRetryDelay,
		log:        log,
	}
}

// Start decodes messages into out until ctx is cancelled. out is closed on return.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup, out chan<- models.ActivityEvent) {
	defer wg.Done()
	defer close(out)
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Error("failed to close kafka reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.log.Info("activity consumer stopped")
				return
			}
			c.log.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				c.log.Info("activity consumer stopped")
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		ev, err := Decode(msg)
		if err != nil {
			c.log.Warn("skipping malformed activity message", "offset", msg.Offset, "error", err)
		} else {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("failed to commit message", "offset", msg.Offset, "error", err)
		}
	}
}

func Decode(msg kafka.Message) (models.ActivityEvent, error) {
	var ev models.ActivityEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return models.ActivityEvent{}, err
	}
	if ev.Kind == "" {
		return models.ActivityEvent{}, errors.New("activity event without kind")
	}
	return ev, nil
}
