package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

type ReactionType string

const (
	Like    ReactionType = "like"
	Dislike ReactionType = "dislike"
)

type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;" json:"id"`
	Username  string    `gorm:"not null" json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is a single buy or sell entry of a user's ledger.
// PriceAtTime is captured once on insert and never recomputed.
type Transaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	CoinID      string          `gorm:"not null;index" json:"coin_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(30,12);not null" json:"amount"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Timestamp   time.Time       `gorm:"not null;index" json:"timestamp"`
	PriceAtTime decimal.Decimal `gorm:"type:decimal(30,12);not null" json:"price_at_time"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Sell {
		return t.Amount.Neg()
	}
	return t.Amount
}

type Post struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   *string   `json:"content"`
	Link      *string   `json:"link"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	UserEmail string    `json:"user_email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Post) TableName() string {
	return "news_posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// Reaction is a user's vote on a post. At most one row exists per (post, user).
type Reaction struct {
	ID           uint         `gorm:"primaryKey" json:"-"`
	PostID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_post_user" json:"post_id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_post_user" json:"user_id"`
	ReactionType ReactionType `gorm:"not null;index" json:"reaction_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (Reaction) TableName() string {
	return "liked_posts"
}

// UsernameFromEmail returns the local part of an address, or "user" when there is none.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if local == "" {
		return "user"
	}
	return local
}
