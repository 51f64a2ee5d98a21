package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reactionKey struct {
	post uuid.UUID
	user uuid.UUID
}

type fakeReactions struct {
	rows      map[reactionKey]models.ReactionType
	inserts   int
	deletes   int
	insertErr error
}

func newFakeReactions() *fakeReactions {
	return &fakeReactions{rows: map[reactionKey]models.ReactionType{}}
}

func (f *fakeReactions) Get(_ context.Context, postID, userID uuid.UUID) (*models.Reaction, error) {
	kind, ok := f.rows[reactionKey{postID, userID}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &models.Reaction{PostID: postID, UserID: userID, ReactionType: kind}, nil
}

func (f *fakeReactions) Insert(_ context.Context, r *models.Reaction) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	k := reactionKey{r.PostID, r.UserID}
	if _, ok := f.rows[k]; ok {
		return errs.ErrAlreadyExists
	}
	f.inserts++
	f.rows[k] = r.ReactionType
	return nil
}

func (f *fakeReactions) Delete(_ context.Context, postID, userID uuid.UUID) error {
	k := reactionKey{postID, userID}
	if _, ok := f.rows[k]; !ok {
		return errs.ErrNotFound
	}
	f.deletes++
	delete(f.rows, k)
	return nil
}

func (f *fakeReactions) Count(_ context.Context, postID uuid.UUID, kind models.ReactionType) (int64, error) {
	var n int64
	for k, v := range f.rows {
		if k.post == postID && v == kind {
			n++
		}
	}
	return n, nil
}

func (f *fakeReactions) Tallies(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]repository.Tally, error) {
	out := map[uuid.UUID]repository.Tally{}
	for _, id := range postIDs {
		likes, _ := f.Count(ctx, id, models.Like)
		dislikes, _ := f.Count(ctx, id, models.Dislike)
		out[id] = repository.Tally{Likes: likes, Dislikes: dislikes}
	}
	return out, nil
}

func (f *fakeReactions) ForUser(_ context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]models.ReactionType, error) {
	out := map[uuid.UUID]models.ReactionType{}
	for _, id := range postIDs {
		if kind, ok := f.rows[reactionKey{id, userID}]; ok {
			out[id] = kind
		}
	}
	return out, nil
}

type fakePosts struct {
	posts map[uuid.UUID]models.Post
	order []uuid.UUID
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[uuid.UUID]models.Post{}}
}

func (f *fakePosts) Create(_ context.Context, p *models.Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.posts[p.ID] = *p
	f.order = append([]uuid.UUID{p.ID}, f.order...)
	return nil
}

func (f *fakePosts) Get(_ context.Context, id uuid.UUID) (*models.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (f *fakePosts) List(_ context.Context, limit int) ([]models.Post, error) {
	out := []models.Post{}
	for _, id := range f.order {
		if p, ok := f.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePosts) Delete(_ context.Context, id, authorID uuid.UUID) error {
	p, ok := f.posts[id]
	if !ok || p.UserID != authorID {
		return errs.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePosts) ReactedBy(context.Context, uuid.UUID, models.ReactionType) ([]models.Post, error) {
	return nil, nil
}

type recordingActivity struct {
	mu     sync.Mutex
	events []models.ActivityEvent
}

func (r *recordingActivity) Record(ev models.ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingActivity) kinds() []models.ActivityKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ActivityKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type recordingScores struct {
	updates []models.ScoreUpdate
}

func (r *recordingScores) PublishScore(_ context.Context, u models.ScoreUpdate) error {
	r.updates = append(r.updates, u)
	return nil
}
