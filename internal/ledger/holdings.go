// Package ledger derives holdings and portfolio value from a transaction list.
// Nothing here is persisted; every result is recomputed from its inputs.
package ledger

import (
	"sort"

	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Holding struct {
	AssetID  string          `json:"asset_id"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Share    decimal.Decimal `json:"share"`
}

type Portfolio struct {
	Holdings   []Holding       `json:"holdings"`
	TotalValue decimal.Decimal `json:"total_value"`
	Empty      bool            `json:"empty"`
}

// Quantities sums signed amounts per asset.
func Quantities(txs []models.Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		out[tx.CoinID] = out[tx.CoinID].Add(tx.Signed())
	}
	return out
}

// AssetOrder returns each asset id once, in order of first appearance.
func AssetOrder(txs []models.Transaction) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, tx := range txs {
		if _, ok := seen[tx.CoinID]; ok {
			continue
		}
		seen[tx.CoinID] = struct{}{}
		ids = append(ids, tx.CoinID)
	}
	return ids
}

// BuildHoldings values every net-positive position at the snapshot price.
// Assets missing from the snapshot are valued at zero.
func BuildHoldings(txs []models.Transaction, snapshot []market.Asset) Portfolio {
	p := Portfolio{
		Holdings:   []Holding{},
		TotalValue: decimal.Zero,
		Empty:      len(txs) == 0,
	}
	if p.Empty {
		return p
	}

	byID := make(map[string]market.Asset, len(snapshot))
	for _, a := range snapshot {
		byID[a.ID] = a
	}

	quantities := Quantities(txs)
	for _, id := range AssetOrder(txs) {
		qty := quantities[id]
		if !qty.IsPositive() {
			continue
		}

		h := Holding{
			AssetID:  id,
			Name:     id,
			Quantity: qty,
			Price:    decimal.Zero,
			Share:    decimal.Zero,
		}
		if a, ok := byID[id]; ok {
			h.Name = a.DisplayName()
			h.Price = a.PriceUSD
		}
		h.Value = qty.Mul(h.Price)

		p.TotalValue = p.TotalValue.Add(h.Value)
		p.Holdings = append(p.Holdings, h)
	}

	if p.TotalValue.IsPositive() {
		for i := range p.Holdings {
			p.Holdings[i].Share = p.Holdings[i].Value.Div(p.TotalValue).Mul(hundred)
		}
	}

	sort.SliceStable(p.Holdings, func(i, j int) bool {
		return p.Holdings[i].Value.GreaterThan(p.Holdings[j].Value)
	})

	return p
}
