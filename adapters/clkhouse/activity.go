package clkhouse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/Tonic56/coinfolio/internal/models"
)

const createActivityTable = `
CREATE TABLE IF NOT EXISTS activity_events (
	id      UUID,
	kind    LowCardinality(String),
	user_id UUID,
	subject String,
	payload String,
	at      DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(at)
ORDER BY (kind, user_id, at)`

type ActivityStore struct {
	conn       driver.Conn
	log        *slog.Logger
	batchSize  int
	flushEvery time.Duration
}

func NewActivityStore(log *slog.Logger, conn driver.Conn, batchSize int, flushEvery time.Duration) *ActivityStore {
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushEvery <= 0 {
		flushEvery = 5 * time.Second
	}
	return &ActivityStore{
		conn:       conn,
		log:        log,
		batchSize:  batchSize,
		flushEvery: flushEvery,
	}
}

func (s *ActivityStore) CreateTable(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createActivityTable); err != nil {
		return fmt.Errorf("clkhouse.CreateTable: %w", err)
	}
	return nil
}

// BatchInsert consumes events until in is closed.
func (s *ActivityStore) BatchInsert(ctx context.Context, wg *sync.WaitGroup, in <-chan models.ActivityEvent) {
	defer wg.Done()

	collect(in, s.batchSize, s.flushEvery, func(batch []models.ActivityEvent) {
		flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.insert(flushCtx, batch); err != nil {
			s.log.Error("failed to insert activity batch", "size", len(batch), "error", err)
			return
		}
		s.log.Debug("inserted activity batch", "size", len(batch))
	})
	s.log.Info("activity batch inserter stopped")
}

func (s *ActivityStore) insert(ctx context.Context, events []models.ActivityEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO activity_events")
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := batch.Append(ev.ID, string(ev.Kind), ev.UserID, ev.Subject, string(ev.Payload), ev.At); err != nil {
			return err
		}
	}
	return batch.Send()
}

// collect groups events into batches of at most size, flushing early every
// interval. The final partial batch is flushed when in is closed.
func collect(in <-chan models.ActivityEvent, size int, interval time.Duration, flush func([]models.ActivityEvent)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]models.ActivityEvent, 0, size)
	emit := func() {
		if len(batch) == 0 {
			return
		}
		flush(batch)
		batch = make([]models.ActivityEvent, 0, size)
	}

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				emit()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= size {
				emit()
			}
		case <-ticker.C:
			emit()
		}
	}
}
