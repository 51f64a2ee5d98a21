package repository

import (
	"context"
	"time"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionEdit holds the fields a user may change after insertion.
type TransactionEdit struct {
	Amount    decimal.Decimal
	Type      models.TransactionType
	Timestamp time.Time
}

type TransactionsRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	Create(ctx context.Context, tx *models.Transaction) error
	Update(ctx context.Context, userID, id uuid.UUID, edit TransactionEdit) (*models.Transaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type transactionsRepository struct {
	db *gorm.DB
}

func NewTransactionsRepository(db *gorm.DB) TransactionsRepository {
	return &transactionsRepository{db: db}
}

func (r *transactionsRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("transactions.timestamp DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionsRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return translate(r.db.WithContext(ctx).Create(tx).Error)
}

// Update never touches price_at_time.
func (r *transactionsRepository) Update(ctx context.Context, userID, id uuid.UUID, edit TransactionEdit) (*models.Transaction, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&models.Transaction{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"amount":    edit.Amount,
			"type":      edit.Type,
			"timestamp": edit.Timestamp,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errs.ErrNotFound
	}

	var tx models.Transaction
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&tx).Error; err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

func (r *transactionsRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Transaction{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}
