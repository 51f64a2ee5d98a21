package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	snapshotSize = 50
	trendingPool = 100
	trendingSize = 50
)

// Source is the subset of Client the feed depends on.
type Source interface {
	Assets(ctx context.Context, limit int) ([]Asset, error)
	Asset(ctx context.Context, id string) (*Asset, error)
	History(ctx context.Context, id string, interval Interval) ([]PricePoint, error)
}

// Cache memoises upstream responses. Implementations report a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (ok bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Feed is the read path used by routes. It never returns an error: failures
// are logged and degrade to an empty result.
type Feed struct {
	src   Source
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewFeed(log *slog.Logger, src Source, cache Cache, ttl time.Duration) *Feed {
	return &Feed{
		src:   src,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func (f *Feed) FetchSnapshot(ctx context.Context) []Asset {
	assets, err := f.assets(ctx, snapshotSize)
	if err != nil {
		f.log.Error("failed to fetch market snapshot", "error", err)
		return []Asset{}
	}
	return assets
}

// FetchTrending ranks a pool of the top assets by 24h change.
func (f *Feed) FetchTrending(ctx context.Context, dir Direction) []Asset {
	pool, err := f.assets(ctx, trendingPool)
	if err != nil {
		f.log.Error("failed to fetch trending assets", "direction", dir, "error", err)
		return []Asset{}
	}
	return Trending(pool, dir, trendingSize)
}

// Search filters the trending pool by name or symbol. An empty query returns
// the whole pool.
func (f *Feed) Search(ctx context.Context, query string) []Asset {
	pool, err := f.assets(ctx, trendingPool)
	if err != nil {
		f.log.Error("failed to search assets", "query", query, "error", err)
		return []Asset{}
	}
	return Filter(pool, query)
}

func (f *Feed) FetchDetails(ctx context.Context, id string) *Asset {
	key := "market:asset:" + id

	var cached Asset
	if f.load(ctx, key, &cached) {
		return &cached
	}

	asset, err := f.src.Asset(ctx, id)
	if err != nil {
		f.log.Error("failed to fetch asset details", "assetID", id, "error", err)
		return nil
	}
	f.store(ctx, key, asset)
	return asset
}

func (f *Feed) FetchHistory(ctx context.Context, id string, interval Interval) []PricePoint {
	key := fmt.Sprintf("market:history:%s:%s", id, interval)

	var cached []PricePoint
	if f.load(ctx, key, &cached) {
		return cached
	}

	points, err := f.src.History(ctx, id, interval)
	if err != nil {
		f.log.Error("failed to fetch price history", "assetID", id, "interval", interval, "error", err)
		return []PricePoint{}
	}
	if len(points) > 0 {
		f.store(ctx, key, points)
	}
	return points
}

func (f *Feed) assets(ctx context.Context, limit int) ([]Asset, error) {
	key := fmt.Sprintf("market:assets:%d", limit)

	var cached []Asset
	if f.load(ctx, key, &cached) {
		return cached, nil
	}

	assets, err := f.src.Assets(ctx, limit)
	if err != nil {
		return nil, err
	}
	f.store(ctx, key, assets)
	return assets, nil
}

func (f *Feed) load(ctx context.Context, key string, dst any) bool {
	if f.cache == nil {
		return false
	}
	ok, err := f.cache.Get(ctx, key, dst)
	if err != nil {
		f.log.Debug("market cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (f *Feed) store(ctx context.Context, key string, value any) {
	if f.cache == nil || f.ttl <= 0 {
		return
	}
	if err := f.cache.Set(ctx, key, value, f.ttl); err != nil {
		f.log.Debug("market cache write failed", "key", key, "error", err)
	}
}

// Trending sorts a copy of pool by 24h change and keeps the first n.
// Gainers are ordered descending, losers ascending.
func Trending(pool []Asset, dir Direction, n int) []Asset {
	sorted := make([]Asset, len(pool))
	copy(sorted, pool)

	sort.SliceStable(sorted, func(i, j int) bool {
		if dir == Losers {
			return sorted[i].ChangePercent24Hr.LessThan(sorted[j].ChangePercent24Hr)
		}
		return sorted[i].ChangePercent24Hr.GreaterThan(sorted[j].ChangePercent24Hr)
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Filter keeps the assets whose name or symbol contains query, ignoring case.
func Filter(pool []Asset, query string) []Asset {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Asset, 0, len(pool))
	for _, a := range pool {
		if q == "" ||
			strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.Symbol), q) {
			out = append(out, a)
		}
	}
	return out
}
