package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
)

const maxUsernameLen = 32

type ProfilesService interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Create(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error)
	SetUsername(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error)
}

type profilesService struct {
	repo     repository.ProfilesRepository
	activity ActivityRecorder
}

func NewProfilesService(repo repository.ProfilesRepository, activity ActivityRecorder) ProfilesService {
	return &profilesService{
		repo:     repo,
		activity: activity,
	}
}

func (s *profilesService) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.repo.Get(ctx, userID)
}

func (s *profilesService) Create(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error) {
	const op = "service.Profiles.Create"

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := &models.Profile{ID: userID, Username: username, Email: email}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.activity.Record(models.NewActivity(models.ActivityProfileCreated, userID, username, nil))
	return p, nil
}

// SetUsername creates the profile if it is missing.
func (s *profilesService) SetUsername(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error) {
	const op = "service.Profiles.SetUsername"

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.repo.UpsertUsername(ctx, userID, email, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("username is required: %w", errs.ErrInvalidInput)
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return "", fmt.Errorf("username longer than %d characters: %w", maxUsernameLen, errs.ErrInvalidInput)
	}
	return username, nil
}
