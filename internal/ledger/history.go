package ledger

import (
	"sort"

	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/shopspring/decimal"
)

type State string

const (
	Ready          State = "ready"
	NoTransactions State = "no_transactions"
	Incomplete     State = "incomplete"
)

type Point struct {
	Time  int64           `json:"time"`
	Value decimal.Decimal `json:"value"`
}

type History struct {
	State  State   `json:"state"`
	Points []Point `json:"points"`
}

// BuildHistory values the portfolio at every timestamp of the first asset's series.
//
// Prices are looked up by exact timestamp, else the latest earlier sample. A
// timestamp where some asset has no sample at or before it is skipped. If any
// asset's series is empty the result is Incomplete with no points.
func BuildHistory(txs []models.Transaction, series map[string][]market.PricePoint) History {
	if len(txs) == 0 {
		return History{State: NoTransactions, Points: []Point{}}
	}

	ids := AssetOrder(txs)
	sorted := make(map[string][]market.PricePoint, len(ids))
	for _, id := range ids {
		s := series[id]
		if len(s) == 0 {
			return History{State: Incomplete, Points: []Point{}}
		}
		sorted[id] = sortedCopy(s)
	}

	ledgers := make(map[string][]models.Transaction, len(ids))
	for _, tx := range txs {
		ledgers[tx.CoinID] = append(ledgers[tx.CoinID], tx)
	}

	points := make([]Point, 0, len(series[ids[0]]))
	for _, tick := range series[ids[0]] {
		total := decimal.Zero
		complete := true

		for _, id := range ids {
			price, ok := priceAt(sorted[id], tick.Time)
			if !ok {
				complete = false
				break
			}
			total = total.Add(quantityAt(ledgers[id], tick.Time).Mul(price))
		}

		if complete {
			points = append(points, Point{Time: tick.Time, Value: total})
		}
	}

	return History{State: Ready, Points: points}
}

// quantityAt sums transactions executed at or before ts (unix millis).
func quantityAt(txs []models.Transaction, ts int64) decimal.Decimal {
	qty := decimal.Zero
	for _, tx := range txs {
		if tx.Timestamp.UnixMilli() <= ts {
			qty = qty.Add(tx.Signed())
		}
	}
	return qty
}

func priceAt(series []market.PricePoint, ts int64) (decimal.Decimal, bool) {
	i := sort.Search(len(series), func(i int) bool { return series[i].Time > ts })
	if i == 0 {
		return decimal.Zero, false
	}
	return series[i-1].Price, true
}

func sortedCopy(s []market.PricePoint) []market.PricePoint {
	out := make([]market.PricePoint, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
