package repository

import (
	"context"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostsRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Get(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, limit int) ([]models.Post, error)
	Delete(ctx context.Context, id, authorID uuid.UUID) error
	ReactedBy(ctx context.Context, userID uuid.UUID, kind models.ReactionType) ([]models.Post, error)
}

type postsRepository struct {
	db *gorm.DB
}

func NewPostsRepository(db *gorm.DB) PostsRepository {
	return &postsRepository{db: db}
}

func (r *postsRepository) Create(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Create(post).Error)
}

func (r *postsRepository) Get(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *postsRepository) List(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Delete removes an author's post together with its reactions.
func (r *postsRepository) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, authorID).Delete(&models.Post{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errs.ErrNotFound
		}

		return tx.Where("post_id = ?", id).Delete(&models.Reaction{}).Error
	})
}

func (r *postsRepository) ReactedBy(ctx context.Context, userID uuid.UUID, kind models.ReactionType) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Joins("JOIN liked_posts ON liked_posts.post_id = news_posts.id").
		Where("liked_posts.user_id = ? AND liked_posts.reaction_type = ?", userID, kind).
		Order("liked_posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}
