package repository

import (
	"context"
	"time"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfilesRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	UpsertUsername(ctx context.Context, id uuid.UUID, email, username string) (*models.Profile, error)
}

type profilesRepository struct {
	db *gorm.DB
}

func NewProfilesRepository(db *gorm.DB) ProfilesRepository {
	return &profilesRepository{db: db}
}

func (r *profilesRepository) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *profilesRepository) Create(ctx context.Context, profile *models.Profile) error {
	return translate(r.db.WithContext(ctx).Create(profile).Error)
}

func (r *profilesRepository) UpsertUsername(ctx context.Context, id uuid.UUID, email, username string) (*models.Profile, error) {
	now := time.Now().UTC()
	p := models.Profile{
		ID:        id,
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return nil, translate(err)
	}

	return r.Get(ctx, id)
}
