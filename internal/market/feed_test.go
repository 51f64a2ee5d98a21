package market

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeSource struct {
	assets  []Asset
	err     error
	calls   int
	history []PricePoint
}

func (s *fakeSource) Assets(ctx context.Context, limit int) ([]Asset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.assets, nil
}

func (s *fakeSource) Asset(ctx context.Context, id string) (*Asset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for _, a := range s.assets {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, errors.New("missing")
}

func (s *fakeSource) History(ctx context.Context, id string, interval Interval) ([]PricePoint, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.history, nil
}

type mapCache map[string][]byte

func (m mapCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m mapCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asset(id, change string) Asset {
	return Asset{ID: id, ChangePercent24Hr: decimal.RequireFromString(change)}
}

func TestFeedDegradesOnFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	f := NewFeed(discardLogger(), src, nil, 0)
	ctx := context.Background()

	if got := f.FetchSnapshot(ctx); got == nil || len(got) != 0 {
		t.Errorf("expected empty snapshot, got %v", got)
	}
	if got := f.FetchTrending(ctx, Losers); len(got) != 0 {
		t.Errorf("expected empty trending, got %v", got)
	}
	if got := f.FetchDetails(ctx, "bitcoin"); got != nil {
		t.Errorf("expected nil details, got %+v", got)
	}
	if got := f.FetchHistory(ctx, "bitcoin", Day); got == nil || len(got) != 0 {
		t.Errorf("expected empty history, got %v", got)
	}
}

func TestFeedServesFromCache(t *testing.T) {
	src := &fakeSource{assets: []Asset{asset("bitcoin", "1")}}
	f := NewFeed(discardLogger(), src, mapCache{}, time.Minute)
	ctx := context.Background()

	f.FetchSnapshot(ctx)
	got := f.FetchSnapshot(ctx)

	if src.calls != 1 {
		t.Errorf("expected one upstream call, got %d", src.calls)
	}
	if len(got) != 1 || got[0].ID != "bitcoin" {
		t.Errorf("unexpected cached snapshot %+v", got)
	}
}

func TestTrending(t *testing.T) {
	pool := []Asset{
		asset("a", "1.5"),
		asset("b", "-3"),
		asset("c", "12"),
		asset("d", "0"),
	}

	t.Run("gainers", func(t *testing.T) {
		got := Trending(pool, Gainers, 3)
		want := []string{"c", "a", "d"}
		for i, id := range want {
			if got[i].ID != id {
				t.Fatalf("position %d: want %s, got %s", i, id, got[i].ID)
			}
		}
		if len(got) != 3 {
			t.Errorf("expected 3 assets, got %d", len(got))
		}
	})

	t.Run("losers", func(t *testing.T) {
		got := Trending(pool, Losers, 10)
		want := []string{"b", "d", "a", "c"}
		for i, id := range want {
			if got[i].ID != id {
				t.Fatalf("position %d: want %s, got %s", i, id, got[i].ID)
			}
		}
	})

	if pool[0].ID != "a" {
		t.Errorf("input pool was reordered")
	}
}

func TestFilter(t *testing.T) {
	pool := []Asset{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
		{ID: "bitcoin-cash", Name: "Bitcoin Cash", Symbol: "BCH"},
		{ID: "ethereum", Name: "Ethereum", Symbol: "ETH"},
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty_returns_all", "", []string{"bitcoin", "bitcoin-cash", "ethereum"}},
		{"name_case_insensitive", "BITCOIN", []string{"bitcoin", "bitcoin-cash"}},
		{"symbol", "eth", []string{"ethereum"}},
		{"trimmed", "  bch ", []string{"bitcoin-cash"}},
		{"no_match", "doge", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(pool, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("want %v, got %+v", tt.want, got)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: want %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestFeedSearchSharesTrendingPool(t *testing.T) {
	src := &fakeSource{assets: []Asset{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
		{ID: "solana", Name: "Solana", Symbol: "SOL"},
	}}
	f := NewFeed(discardLogger(), src, mapCache{}, time.Minute)
	ctx := context.Background()

	f.FetchTrending(ctx, Gainers)
	got := f.Search(ctx, "sol")

	if src.calls != 1 {
		t.Errorf("expected search to reuse the cached pool, got %d upstream calls", src.calls)
	}
	if len(got) != 1 || got[0].ID != "solana" {
		t.Errorf("unexpected search result %+v", got)
	}

	failing := NewFeed(discardLogger(), &fakeSource{err: errors.New("down")}, nil, 0)
	if got := failing.Search(ctx, "btc"); got == nil || len(got) != 0 {
		t.Errorf("expected empty result on failure, got %v", got)
	}
}
