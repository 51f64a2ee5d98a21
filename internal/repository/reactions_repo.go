package repository

import (
	"context"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tally is the authoritative like/dislike count of one post.
type Tally struct {
	Likes    int64
	Dislikes int64
}

func (t Tally) Score() int64 {
	return t.Likes - t.Dislikes
}

type ReactionsRepository interface {
	Get(ctx context.Context, postID, userID uuid.UUID) (*models.Reaction, error)
	Insert(ctx context.Context, r *models.Reaction) error
	Delete(ctx context.Context, postID, userID uuid.UUID) error
	Count(ctx context.Context, postID uuid.UUID, kind models.ReactionType) (int64, error)
	Tallies(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]Tally, error)
	ForUser(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]models.ReactionType, error)
}

type reactionsRepository struct {
	db *gorm.DB
}

func NewReactionsRepository(db *gorm.DB) ReactionsRepository {
	return &reactionsRepository{db: db}
}

func (r *reactionsRepository) Get(ctx context.Context, postID, userID uuid.UUID) (*models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&reaction).Error
	if err != nil {
		return nil, translate(err)
	}
	return &reaction, nil
}

func (r *reactionsRepository) Insert(ctx context.Context, reaction *models.Reaction) error {
	return translate(r.db.WithContext(ctx).Create(reaction).Error)
}

func (r *reactionsRepository) Delete(ctx context.Context, postID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Reaction{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *reactionsRepository) Count(ctx context.Context, postID uuid.UUID, kind models.ReactionType) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("post_id = ? AND reaction_type = ?", postID, kind).
		Count(&n).Error
	return n, err
}

func (r *reactionsRepository) Tallies(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]Tally, error) {
	out := make(map[uuid.UUID]Tally, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PostID       uuid.UUID
		ReactionType models.ReactionType
		N            int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Select("post_id, reaction_type, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id, reaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		t := out[row.PostID]
		switch row.ReactionType {
		case models.Like:
			t.Likes += row.N
		case models.Dislike:
			t.Dislikes += row.N
		}
		out[row.PostID] = t
	}
	return out, nil
}

func (r *reactionsRepository) ForUser(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]models.ReactionType, error) {
	out := make(map[uuid.UUID]models.ReactionType)
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []models.Reaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.PostID] = row.ReactionType
	}
	return out, nil
}
