package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Tonic56/coinfolio/internal/ledger"
	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pricer resolves execution prices. Failures must surface to the caller.
type Pricer interface {
	Asset(ctx context.Context, id string) (*market.Asset, error)
	HistoryRange(ctx context.Context, id, granularity string, start, end time.Time) ([]market.PricePoint, error)
}

// MarketReader is the degrading read path used for valuation.
type MarketReader interface {
	FetchSnapshot(ctx context.Context) []market.Asset
	FetchDetails(ctx context.Context, id string) *market.Asset
	FetchHistory(ctx context.Context, id string, interval market.Interval) []market.PricePoint
}

type NewTransaction struct {
	CoinID    string
	Amount    decimal.Decimal
	Type      models.TransactionType
	Timestamp time.Time
}

type TransactionsService interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	Add(ctx context.Context, userID uuid.UUID, in NewTransaction) (*models.Transaction, error)
	Update(ctx context.Context, userID, id uuid.UUID, edit repository.TransactionEdit) (*models.Transaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Holdings(ctx context.Context, userID uuid.UUID) (ledger.Portfolio, error)
	History(ctx context.Context, userID uuid.UUID, interval market.Interval) (ledger.History, error)
}

type transactionsService struct {
	repo     repository.TransactionsRepository
	pricer   Pricer
	market   MarketReader
	activity ActivityRecorder
	loc      *time.Location
	now      func() time.Time
}

func NewTransactionsService(
	repo repository.TransactionsRepository,
	pricer Pricer,
	feed MarketReader,
	activity ActivityRecorder,
	loc *time.Location,
) TransactionsService {
	if loc == nil {
		loc = time.UTC
	}
	return &transactionsService{
		repo:     repo,
		pricer:   pricer,
		market:   feed,
		activity: activity,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *transactionsService) List(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.repo.List(ctx, userID)
}

// Add prices the transaction and persists it. Nothing is written if pricing fails.
func (s *transactionsService) Add(ctx context.Context, userID uuid.UUID, in NewTransaction) (*models.Transaction, error) {
	const op = "service.Transactions.Add"

	in.CoinID = strings.TrimSpace(in.CoinID)
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}
	if err := validateTransaction(in.CoinID, in.Amount, in.Type); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	price, err := s.priceAt(ctx, in.CoinID, in.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrPriceUnavailable, err)
	}

	tx := &models.Transaction{
		UserID:      userID,
		CoinID:      in.CoinID,
		Amount:      in.Amount,
		Type:        in.Type,
		Timestamp:   in.Timestamp.UTC(),
		PriceAtTime: price,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.activity.Record(models.NewActivity(models.ActivityTransactionCreated, userID, tx.ID.String(), tx))
	return tx, nil
}

func (s *transactionsService) Update(ctx context.Context, userID, id uuid.UUID, edit repository.TransactionEdit) (*models.Transaction, error) {
	const op = "service.Transactions.Update"

	if err := validateTransaction("-", edit.Amount, edit.Type); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if edit.Timestamp.IsZero() {
		return nil, fmt.Errorf("%s: timestamp is required: %w", op, errs.ErrInvalidInput)
	}
	edit.Timestamp = edit.Timestamp.UTC()

	tx, err := s.repo.Update(ctx, userID, id, edit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.activity.Record(models.NewActivity(models.ActivityTransactionUpdated, userID, id.String(), tx))
	return tx, nil
}

func (s *transactionsService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("service.Transactions.Delete: %w", err)
	}
	s.activity.Record(models.NewActivity(models.ActivityTransactionDeleted, userID, id.String(), nil))
	return nil
}

func (s *transactionsService) Holdings(ctx context.Context, userID uuid.UUID) (ledger.Portfolio, error) {
	txs, err := s.repo.List(ctx, userID)
	if err != nil {
		return ledger.Portfolio{}, fmt.Errorf("service.Transactions.Holdings: %w", err)
	}
	if len(txs) == 0 {
		return ledger.BuildHoldings(nil, nil), nil
	}
	return ledger.BuildHoldings(txs, s.prices(ctx, txs)), nil
}

// prices returns the snapshot extended with details for held assets that
// fall outside it.
func (s *transactionsService) prices(ctx context.Context, txs []models.Transaction) []market.Asset {
	assets := s.market.FetchSnapshot(ctx)

	listed := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		listed[a.ID] = struct{}{}
	}

	quantities := ledger.Quantities(txs)
	for _, id := range ledger.AssetOrder(txs) {
		if _, ok := listed[id]; ok || !quantities[id].IsPositive() {
			continue
		}
		if a := s.market.FetchDetails(ctx, id); a != nil {
			assets = append(assets, *a)
		}
	}
	return assets
}

// History fetches every held asset's series concurrently and folds them.
func (s *transactionsService) History(ctx context.Context, userID uuid.UUID, interval market.Interval) (ledger.History, error) {
	txs, err := s.repo.List(ctx, userID)
	if err != nil {
		return ledger.History{}, fmt.Errorf("service.Transactions.History: %w", err)
	}

	ids := ledger.AssetOrder(txs)
	series := make(map[string][]market.PricePoint, len(ids))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			points := s.market.FetchHistory(ctx, id, interval)
			mu.Lock()
			series[id] = points
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return ledger.BuildHistory(txs, series), nil
}

// priceAt uses the live price for today's trades and the first sample of the
// following hour otherwise. An empty historical window prices at zero.
func (s *transactionsService) priceAt(ctx context.Context, coinID string, ts time.Time) (decimal.Decimal, error) {
	if sameDay(ts.In(s.loc), s.now().In(s.loc)) {
		asset, err := s.pricer.Asset(ctx, coinID)
		if err != nil {
			return decimal.Zero, err
		}
		return asset.PriceUSD, nil
	}

	points, err := s.pricer.HistoryRange(ctx, coinID, "h1", ts, ts.Add(time.Hour))
	if err != nil {
		return decimal.Zero, err
	}
	if len(points) == 0 {
		return decimal.Zero, nil
	}
	return points[0].Price, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func validateTransaction(coinID string, amount decimal.Decimal, typ models.TransactionType) error {
	if coinID == "" {
		return fmt.Errorf("coin id is required: %w", errs.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", errs.ErrInvalidInput)
	}
	if typ != models.Buy && typ != models.Sell {
		return fmt.Errorf("unknown transaction type %q: %w", typ, errs.ErrInvalidInput)
	}
	return nil
}
