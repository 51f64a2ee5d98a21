package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
)

// ReactionResult is the state of a (post, user) pair after a transition.
// State is empty when the user no longer reacts to the post.
type ReactionResult struct {
	PostID   uuid.UUID           `json:"post_id"`
	State    models.ReactionType `json:"state,omitempty"`
	Likes    int64               `json:"likes"`
	Dislikes int64               `json:"dislikes"`
	Score    int64               `json:"score"`
}

type ReactionsService interface {
	React(ctx context.Context, userID, postID uuid.UUID, kind models.ReactionType) (*ReactionResult, error)
}

type reactionsService struct {
	log       *slog.Logger
	reactions repository.ReactionsRepository
	posts     repository.PostsRepository
	scores    ScorePublisher
	activity  ActivityRecorder
}

func NewReactionsService(
	log *slog.Logger,
	reactions repository.ReactionsRepository,
	posts repository.PostsRepository,
	scores ScorePublisher,
	activity ActivityRecorder,
) ReactionsService {
	return &reactionsService{
		log:       log,
		reactions: reactions,
		posts:     posts,
		scores:    scores,
		activity:  activity,
	}
}

// React applies kind to the user's current reaction on the post:
// none -> kind, kind -> none, opposite -> kind.
// The existing row is always deleted before a new one is inserted, and the
// score is recounted from the stored rows afterwards. Delete and insert are
// not atomic; a failure between them leaves the user with no reaction.
func (s *reactionsService) React(ctx context.Context, userID, postID uuid.UUID, kind models.ReactionType) (*ReactionResult, error) {
	const op = "service.Reactions.React"

	if kind != models.Like && kind != models.Dislike {
		return nil, fmt.Errorf("%s: unknown reaction %q: %w", op, kind, errs.ErrInvalidInput)
	}

	if _, err := s.posts.Get(ctx, postID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.reactions.Get(ctx, postID, userID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%s: read current reaction: %w", op, err)
	}

	if current != nil {
		if err := s.reactions.Delete(ctx, postID, userID); err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%s: remove reaction: %w", op, err)
		}
	}

	result := &ReactionResult{PostID: postID}

	if current == nil || current.ReactionType != kind {
		r := &models.Reaction{PostID: postID, UserID: userID, ReactionType: kind}
		if err := s.reactions.Insert(ctx, r); err != nil {
			return nil, fmt.Errorf("%s: insert reaction: %w", op, err)
		}
		result.State = kind
	}

	if result.Likes, err = s.reactions.Count(ctx, postID, models.Like); err != nil {
		return nil, fmt.Errorf("%s: count likes: %w", op, err)
	}
	if result.Dislikes, err = s.reactions.Count(ctx, postID, models.Dislike); err != nil {
		return nil, fmt.Errorf("%s: count dislikes: %w", op, err)
	}
	result.Score = result.Likes - result.Dislikes

	update := models.ScoreUpdate{
		PostID:   postID,
		Likes:    result.Likes,
		Dislikes: result.Dislikes,
		Score:    result.Score,
	}
	if s.scores != nil {
		if err := s.scores.PublishScore(ctx, update); err != nil {
			s.log.Warn("failed to publish score update", "postID", postID, "error", err)
		}
	}

	s.activity.Record(models.NewActivity(models.ActivityReactionChanged, userID, postID.String(), result))
	return result, nil
}
