package http

import (
	"net/http"

	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/lib/usd"
	"github.com/gin-gonic/gin"
)

type assetView struct {
	market.Asset
	DisplayName      string `json:"display_name"`
	DisplayPrice     string `json:"display_price"`
	DisplayMarketCap string `json:"display_market_cap"`
}

func viewAsset(a market.Asset) assetView {
	return assetView{
		Asset:            a,
		DisplayName:      a.DisplayName(),
		DisplayPrice:     usd.Format(a.PriceUSD),
		DisplayMarketCap: usd.Compact(a.MarketCapUSD),
	}
}

func viewAssets(assets []market.Asset) []assetView {
	out := make([]assetView, 0, len(assets))
	for _, a := range assets {
		out = append(out, viewAsset(a))
	}
	return out
}

func (h *Handler) listAssets(c *gin.Context) {
	c.JSON(http.StatusOK, viewAssets(h.market.FetchSnapshot(c.Request.Context())))
}

func (h *Handler) trendingAssets(c *gin.Context) {
	dir, err := market.ParseDirection(c.Query("direction"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be gainers or losers"})
		return
	}
	c.JSON(http.StatusOK, viewAssets(h.market.FetchTrending(c.Request.Context(), dir)))
}

func (h *Handler) searchAssets(c *gin.Context) {
	c.JSON(http.StatusOK, viewAssets(h.market.Search(c.Request.Context(), c.Query("q"))))
}

func (h *Handler) assetDetails(c *gin.Context) {
	asset := h.market.FetchDetails(c.Request.Context(), c.Param("id"))
	if asset == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, viewAsset(*asset))
}

func (h *Handler) assetHistory(c *gin.Context) {
	interval, ok := queryInterval(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.market.FetchHistory(c.Request.Context(), c.Param("id"), interval))
}

// queryInterval reads ?interval=, defaulting to one day.
func queryInterval(c *gin.Context) (market.Interval, bool) {
	raw := c.DefaultQuery("interval", string(market.Day))
	interval, err := market.ParseInterval(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interval", "allowed": market.Intervals()})
		return "", false
	}
	return interval, true
}
