package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
)

const feedLimit = 100

type NewPost struct {
	Title   string
	Content *string
	Link    *string
}

// FeedPost is a post with its score recounted from reaction rows.
type FeedPost struct {
	models.Post
	Likes      int64               `json:"likes"`
	Dislikes   int64               `json:"dislikes"`
	Score      int64               `json:"score"`
	MyReaction models.ReactionType `json:"my_reaction,omitempty"`
}

type PostsService interface {
	Create(ctx context.Context, userID uuid.UUID, email string, in NewPost) (*FeedPost, error)
	Delete(ctx context.Context, userID, postID uuid.UUID) error
	List(ctx context.Context, viewer *uuid.UUID) ([]FeedPost, error)
	ReactedBy(ctx context.Context, userID uuid.UUID, kind models.ReactionType) ([]FeedPost, error)
}

type postsService struct {
	posts     repository.PostsRepository
	reactions repository.ReactionsRepository
	reactor   ReactionsService
	activity  ActivityRecorder
}

func NewPostsService(
	posts repository.PostsRepository,
	reactions repository.ReactionsRepository,
	reactor ReactionsService,
	activity ActivityRecorder,
) PostsService {
	return &postsService{
		posts:     posts,
		reactions: reactions,
		reactor:   reactor,
		activity:  activity,
	}
}

// Create stores the post and registers the author's like on it.
func (s *postsService) Create(ctx context.Context, userID uuid.UUID, email string, in NewPost) (*FeedPost, error) {
	const op = "service.Posts.Create"

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%s: title is required: %w", op, errs.ErrInvalidInput)
	}

	post := &models.Post{
		Title:     title,
		Content:   trimmed(in.Content),
		Link:      trimmed(in.Link),
		UserID:    userID,
		UserEmail: email,
		Username:  models.UsernameFromEmail(email),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.activity.Record(models.NewActivity(models.ActivityPostCreated, userID, post.ID.String(), post))

	out := &FeedPost{Post: *post}
	res, err := s.reactor.React(ctx, userID, post.ID, models.Like)
	if err != nil {
		return nil, fmt.Errorf("%s: like own post: %w", op, err)
	}
	out.Likes, out.Dislikes, out.Score, out.MyReaction = res.Likes, res.Dislikes, res.Score, res.State

	return out, nil
}

func (s *postsService) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	const op = "service.Posts.Delete"

	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if post.UserID != userID {
		return fmt.Errorf("%s: %w", op, errs.ErrForbidden)
	}

	if err := s.posts.Delete(ctx, postID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.activity.Record(models.NewActivity(models.ActivityPostDeleted, userID, postID.String(), nil))
	return nil
}

// List returns the newest posts. viewer may be nil for anonymous readers.
func (s *postsService) List(ctx context.Context, viewer *uuid.UUID) ([]FeedPost, error) {
	posts, err := s.posts.List(ctx, feedLimit)
	if err != nil {
		return nil, fmt.Errorf("service.Posts.List: %w", err)
	}
	return s.decorate(ctx, posts, viewer)
}

func (s *postsService) ReactedBy(ctx context.Context, userID uuid.UUID, kind models.ReactionType) ([]FeedPost, error) {
	if kind != models.Like && kind != models.Dislike {
		return nil, fmt.Errorf("service.Posts.ReactedBy: unknown reaction %q: %w", kind, errs.ErrInvalidInput)
	}

	posts, err := s.posts.ReactedBy(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("service.Posts.ReactedBy: %w", err)
	}
	return s.decorate(ctx, posts, &userID)
}

func (s *postsService) decorate(ctx context.Context, posts []models.Post, viewer *uuid.UUID) ([]FeedPost, error) {
	const op = "service.Posts.decorate"

	ids := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	tallies, err := s.reactions.Tallies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mine := map[uuid.UUID]models.ReactionType{}
	if viewer != nil {
		if mine, err = s.reactions.ForUser(ctx, *viewer, ids); err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	out := make([]FeedPost, len(posts))
	for i, p := range posts {
		t := tallies[p.ID]
		out[i] = FeedPost{
			Post:       p,
			Likes:      t.Likes,
			Dislikes:   t.Dislikes,
			Score:      t.Score(),
			MyReaction: mine[p.ID],
		}
	}
	return out, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
