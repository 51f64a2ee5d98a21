package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScoreUpdate is fanned out to live clients whenever a post's score is recomputed.
type ScoreUpdate struct {
	PostID   uuid.UUID `json:"post_id"`
	Likes    int64     `json:"likes"`
	Dislikes int64     `json:"dislikes"`
	Score    int64     `json:"score"`
}

type ActivityKind string

const (
	ActivityTransactionCreated ActivityKind = "transaction.created"
	ActivityTransactionUpdated ActivityKind = "transaction.updated"
	ActivityTransactionDeleted ActivityKind = "transaction.deleted"
	ActivityPostCreated        ActivityKind = "post.created"
	ActivityPostDeleted        ActivityKind = "post.deleted"
	ActivityReactionChanged    ActivityKind = "reaction.changed"
	ActivityProfileCreated     ActivityKind = "profile.created"
)

// ActivityEvent is the record shipped to the activity stream.
type ActivityEvent struct {
	ID      uuid.UUID       `json:"id"`
	Kind    ActivityKind    `json:"kind"`
	UserID  uuid.UUID       `json:"user_id"`
	Subject string          `json:"subject"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewActivity builds an event, encoding payload as JSON when it is not nil.
func NewActivity(kind ActivityKind, userID uuid.UUID, subject string, payload any) ActivityEvent {
	ev := ActivityEvent{
		ID:      uuid.New(),
		Kind:    kind,
		UserID:  userID,
		Subject: subject,
		At:      time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}
