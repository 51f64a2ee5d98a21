package kaffka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Tonic56/coinfolio/internal/config"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/segmentio/kafka-go"
)

const (
	queueSize    = 500
	batchSize    = 100
	batchTimeout = time.Second
	writeTimeout = 10 * time.Second
)

// Producer ships activity events to the activity topic. Record never blocks;
// events are dropped when the queue is full.
type Producer struct {
	writer *kafka.Writer
	queue  chan models.ActivityEvent
	log    *slog.Logger
}

func NewProducer(log *slog.Logger, cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    batchSize,
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			WriteTimeout: writeTimeout,
		},
		queue: make(chan models.ActivityEvent, queueSize),
		log:   log,
	}
}

func (p *Producer) Record(ev models.ActivityEvent) {
	select {
	case p.queue <- ev:
	default:
		p.log.Warn("activity queue full, dropping event", "kind", ev.Kind, "id", ev.ID)
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left.
func (p *Producer) Start(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.log.Error("failed to close kafka writer", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.log.Info("activity producer stopped")
			return
		case ev := <-p.queue:
			p.write(ctx, ev)
		}
	}
}

func (p *Producer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for {
		select {
		case ev := <-p.queue:
			p.write(ctx, ev)
		default:
			return
		}
	}
}

func (p *Producer) write(ctx context.Context, ev models.ActivityEvent) {
	msg, err := Encode(ev)
	if err != nil {
		p.log.Error("failed to encode activity event", "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to write activity event", "kind", ev.Kind, "error", err)
	}
}

// Encode keys the message by user so one user's events stay ordered.
func Encode(ev models.ActivityEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.UserID.String()),
		Value: value,
		Time:  ev.At,
	}, nil
}
