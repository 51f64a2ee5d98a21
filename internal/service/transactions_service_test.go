package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tonic56/coinfolio/internal/ledger"
	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeTransactions struct {
	rows []models.Transaction
}

func (f *fakeTransactions) List(_ context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.rows {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTransactions) Create(_ context.Context, tx *models.Transaction) error {
	tx.ID = uuid.New()
	f.rows = append(f.rows, *tx)
	return nil
}

func (f *fakeTransactions) Update(_ context.Context, userID, id uuid.UUID, edit repository.TransactionEdit) (*models.Transaction, error) {
	for i, tx := range f.rows {
		if tx.ID == id && tx.UserID == userID {
			f.rows[i].Amount, f.rows[i].Type, f.rows[i].Timestamp = edit.Amount, edit.Type, edit.Timestamp
			out := f.rows[i]
			return &out, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeTransactions) Delete(_ context.Context, userID, id uuid.UUID) error {
	for i, tx := range f.rows {
		if tx.ID == id && tx.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakePricer struct {
	live        decimal.Decimal
	window      []market.PricePoint
	err         error
	liveCalls   int
	windowCalls int
	start, end  time.Time
	granularity string
}

func (p *fakePricer) Asset(_ context.Context, id string) (*market.Asset, error) {
	p.liveCalls++
	if p.err != nil {
		return nil, p.err
	}
	return &market.Asset{ID: id, PriceUSD: p.live}, nil
}

func (p *fakePricer) HistoryRange(_ context.Context, _ string, granularity string, start, end time.Time) ([]market.PricePoint, error) {
	p.windowCalls++
	p.granularity, p.start, p.end = granularity, start, end
	if p.err != nil {
		return nil, p.err
	}
	return p.window, nil
}

type fakeMarket struct {
	snapshot []market.Asset
	details  map[string]market.Asset
	series   map[string][]market.PricePoint
	lookups  []string
}

func (m *fakeMarket) FetchSnapshot(context.Context) []market.Asset {
	return m.snapshot
}

func (m *fakeMarket) FetchDetails(_ context.Context, id string) *market.Asset {
	m.lookups = append(m.lookups, id)
	a, ok := m.details[id]
	if !ok {
		return nil
	}
	return &a
}

func (m *fakeMarket) FetchHistory(_ context.Context, id string, _ market.Interval) []market.PricePoint {
	return m.series[id]
}

var fixedNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func newTxService(repo *fakeTransactions, pricer *fakePricer, feed *fakeMarket, activity ActivityRecorder) *transactionsService {
	svc := NewTransactionsService(repo, pricer, feed, activity, time.UTC).(*transactionsService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestAdd_PricesTodayAtLivePrice(t *testing.T) {
	repo := &fakeTransactions{}
	pricer := &fakePricer{live: decimal.RequireFromString("65000")}
	activity := &recordingActivity{}
	svc := newTxService(repo, pricer, &fakeMarket{}, activity)

	tx, err := svc.Add(context.Background(), uuid.New(), NewTransaction{
		CoinID:    "bitcoin",
		Amount:    decimal.RequireFromString("0.1"),
		Type:      models.Buy,
		Timestamp: fixedNow.Add(-10 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pricer.liveCalls != 1 || pricer.windowCalls != 0 {
		t.Errorf("expected live price only, got live=%d window=%d", pricer.liveCalls, pricer.windowCalls)
	}
	if !tx.PriceAtTime.Equal(decimal.RequireFromString("65000")) {
		t.Errorf("unexpected price %s", tx.PriceAtTime)
	}
	if len(repo.rows) != 1 {
		t.Errorf("expected transaction to be stored")
	}
	if kinds := activity.kinds(); len(kinds) != 1 || kinds[0] != models.ActivityTransactionCreated {
		t.Errorf("unexpected activity %v", kinds)
	}
}

func TestAdd_PricesPastFromHourWindow(t *testing.T) {
	ts := fixedNow.AddDate(0, 0, -3)

	t.Run("first_sample", func(t *testing.T) {
		repo := &fakeTransactions{}
		pricer := &fakePricer{window: []market.PricePoint{
			{Price: decimal.RequireFromString("58000"), Time: ts.UnixMilli()},
			{Price: decimal.RequireFromString("59000"), Time: ts.Add(time.Hour).UnixMilli()},
		}}
		svc := newTxService(repo, pricer, &fakeMarket{}, NopRecorder())

		tx, err := svc.Add(context.Background(), uuid.New(), NewTransaction{
			CoinID: "bitcoin", Amount: decimal.NewFromInt(1), Type: models.Buy, Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pricer.liveCalls != 0 {
			t.Errorf("live price must not be used for past trades")
		}
		if pricer.granularity != "h1" || !pricer.start.Equal(ts) || !pricer.end.Equal(ts.Add(time.Hour)) {
			t.Errorf("unexpected window %s %s..%s", pricer.granularity, pricer.start, pricer.end)
		}
		if !tx.PriceAtTime.Equal(decimal.RequireFromString("58000")) {
			t.Errorf("expected first sample, got %s", tx.PriceAtTime)
		}
	})

	t.Run("empty_window_prices_at_zero", func(t *testing.T) {
		repo := &fakeTransactions{}
		svc := newTxService(repo, &fakePricer{}, &fakeMarket{}, NopRecorder())

		tx, err := svc.Add(context.Background(), uuid.New(), NewTransaction{
			CoinID: "bitcoin", Amount: decimal.NewFromInt(1), Type: models.Sell, Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !tx.PriceAtTime.IsZero() {
			t.Errorf("expected zero price, got %s", tx.PriceAtTime)
		}
	})
}

func TestAdd_PriceFailureAbortsWrite(t *testing.T) {
	for name, ts := range map[string]time.Time{
		"today": fixedNow,
		"past":  fixedNow.AddDate(-1, 0, 0),
	} {
		t.Run(name, func(t *testing.T) {
			repo := &fakeTransactions{}
			pricer := &fakePricer{err: errors.New("timeout")}
			svc := newTxService(repo, pricer, &fakeMarket{}, NopRecorder())

			_, err := svc.Add(context.Background(), uuid.New(), NewTransaction{
				CoinID: "bitcoin", Amount: decimal.NewFromInt(1), Type: models.Buy, Timestamp: ts,
			})
			if !errors.Is(err, errs.ErrPriceUnavailable) {
				t.Fatalf("expected ErrPriceUnavailable, got %v", err)
			}
			if len(repo.rows) != 0 {
				t.Errorf("no transaction may be stored without a price")
			}
		})
	}
}

func TestAdd_Validation(t *testing.T) {
	svc := newTxService(&fakeTransactions{}, &fakePricer{}, &fakeMarket{}, NopRecorder())

	cases := map[string]NewTransaction{
		"missing_coin":    {Amount: decimal.NewFromInt(1), Type: models.Buy},
		"negative_amount": {CoinID: "bitcoin", Amount: decimal.NewFromInt(-1), Type: models.Buy},
		"unknown_type":    {CoinID: "bitcoin", Amount: decimal.NewFromInt(1), Type: "swap"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Add(context.Background(), uuid.New(), in); !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdate_DoesNotReprice(t *testing.T) {
	repo := &fakeTransactions{}
	pricer := &fakePricer{live: decimal.NewFromInt(100)}
	svc := newTxService(repo, pricer, &fakeMarket{}, NopRecorder())
	user := uuid.New()

	tx, err := svc.Add(context.Background(), user, NewTransaction{
		CoinID: "bitcoin", Amount: decimal.NewFromInt(2), Type: models.Buy, Timestamp: fixedNow,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	pricer.live = decimal.NewFromInt(999)
	updated, err := svc.Update(context.Background(), user, tx.ID, repository.TransactionEdit{
		Amount: decimal.NewFromInt(3), Type: models.Sell, Timestamp: fixedNow.AddDate(0, 0, -1),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.PriceAtTime.Equal(decimal.NewFromInt(100)) {
		t.Errorf("price changed on edit: %s", updated.PriceAtTime)
	}
	if pricer.liveCalls != 1 {
		t.Errorf("edit must not fetch prices")
	}

	if _, err := svc.Update(context.Background(), uuid.New(), tx.ID, repository.TransactionEdit{
		Amount: decimal.NewFromInt(1), Type: models.Buy, Timestamp: fixedNow,
	}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
}

func TestHoldingsAndHistory(t *testing.T) {
	user := uuid.New()
	repo := &fakeTransactions{rows: []models.Transaction{
		{ID: uuid.New(), UserID: user, CoinID: "bitcoin", Amount: decimal.RequireFromString("1.0"), Type: models.Buy, Timestamp: fixedNow.AddDate(0, 0, -2)},
		{ID: uuid.New(), UserID: user, CoinID: "bitcoin", Amount: decimal.RequireFromString("0.4"), Type: models.Sell, Timestamp: fixedNow.AddDate(0, 0, -1)},
	}}
	feed := &fakeMarket{
		snapshot: []market.Asset{{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", PriceUSD: decimal.NewFromInt(70000)}},
		series: map[string][]market.PricePoint{
			"bitcoin": {{Time: fixedNow.UnixMilli(), Price: decimal.NewFromInt(70000)}},
		},
	}
	svc := newTxService(repo, &fakePricer{}, feed, NopRecorder())

	p, err := svc.Holdings(context.Background(), user)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(p.Holdings) != 1 || !p.TotalValue.Equal(decimal.NewFromInt(42000)) {
		t.Errorf("unexpected portfolio %+v", p)
	}

	h, err := svc.History(context.Background(), user, market.Day)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if h.State != ledger.Ready || len(h.Points) != 1 || !h.Points[0].Value.Equal(decimal.NewFromInt(42000)) {
		t.Errorf("unexpected history %+v", h)
	}

	empty, err := svc.Holdings(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if !empty.Empty || !empty.TotalValue.IsZero() {
		t.Errorf("expected explicit empty state, got %+v", empty)
	}
}

func TestHoldings_PricesAssetsOutsideSnapshot(t *testing.T) {
	user := uuid.New()
	repo := &fakeTransactions{}
	feed := &fakeMarket{
		snapshot: []market.Asset{{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", PriceUSD: decimal.NewFromInt(70000)}},
		details: map[string]market.Asset{
			"rank-120-coin": {ID: "rank-120-coin", Name: "Tail", Symbol: "TAIL", PriceUSD: decimal.NewFromInt(5)},
		},
	}
	svc := newTxService(repo, &fakePricer{live: decimal.NewFromInt(5)}, feed, NopRecorder())

	tx, err := svc.Add(context.Background(), user, NewTransaction{CoinID: "rank-120-coin", Amount: decimal.NewFromInt(10), Type: models.Buy})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !tx.PriceAtTime.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected price_at_time 5, got %s", tx.PriceAtTime)
	}

	p, err := svc.Holdings(context.Background(), user)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(p.Holdings) != 1 {
		t.Fatalf("expected one holding, got %+v", p.Holdings)
	}
	h := p.Holdings[0]
	if !h.Price.Equal(decimal.NewFromInt(5)) || !h.Value.Equal(decimal.NewFromInt(50)) || h.Name != "Tail (TAIL)" {
		t.Errorf("unexpected holding %+v", h)
	}
	if !p.TotalValue.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected total 50, got %s", p.TotalValue)
	}
	if len(feed.lookups) != 1 || feed.lookups[0] != "rank-120-coin" {
		t.Errorf("expected a single details lookup for the unlisted asset, got %v", feed.lookups)
	}
}

func TestHoldings_SkipsLookupForListedAndClosedPositions(t *testing.T) {
	user := uuid.New()
	repo := &fakeTransactions{rows: []models.Transaction{
		{ID: uuid.New(), UserID: user, CoinID: "bitcoin", Amount: decimal.NewFromInt(1), Type: models.Buy, Timestamp: fixedNow},
		{ID: uuid.New(), UserID: user, CoinID: "closed-coin", Amount: decimal.NewFromInt(3), Type: models.Buy, Timestamp: fixedNow},
		{ID: uuid.New(), UserID: user, CoinID: "closed-coin", Amount: decimal.NewFromInt(3), Type: models.Sell, Timestamp: fixedNow},
	}}
	feed := &fakeMarket{snapshot: []market.Asset{{ID: "bitcoin", PriceUSD: decimal.NewFromInt(100)}}}
	svc := newTxService(repo, &fakePricer{}, feed, NopRecorder())

	p, err := svc.Holdings(context.Background(), user)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(feed.lookups) != 0 {
		t.Errorf("expected no details lookups, got %v", feed.lookups)
	}
	if len(p.Holdings) != 1 || !p.TotalValue.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected portfolio %+v", p)
	}
}
