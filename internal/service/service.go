package service

import (
	"context"

	"github.com/Tonic56/coinfolio/internal/models"
)

// ActivityRecorder receives audit events. Record must not block.
type ActivityRecorder interface {
	Record(ev models.ActivityEvent)
}

// ScorePublisher fans recomputed post scores out to live subscribers.
type ScorePublisher interface {
	PublishScore(ctx context.Context, update models.ScoreUpdate) error
}

type nopRecorder struct{}

func (nopRecorder) Record(models.ActivityEvent) {}

// NopRecorder discards every event.
func NopRecorder() ActivityRecorder {
	return nopRecorder{}
}
