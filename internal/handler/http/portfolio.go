package http

import (
	"net/http"
	"time"

	"github.com/Tonic56/coinfolio/internal/ledger"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/internal/service"
	"github.com/Tonic56/coinfolio/lib/usd"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type holdingView struct {
	ledger.Holding
	DisplayValue string `json:"display_value"`
}

type portfolioView struct {
	Holdings     []holdingView   `json:"holdings"`
	TotalValue   decimal.Decimal `json:"total_value"`
	DisplayTotal string          `json:"display_total"`
	Empty        bool            `json:"empty"`
}

type transactionRequest struct {
	CoinID    string                 `json:"coin_id"`
	Amount    decimal.Decimal        `json:"amount"`
	Type      models.TransactionType `json:"type"`
	Timestamp *time.Time             `json:"timestamp"`
}

func (h *Handler) holdings(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	p, err := h.transactions.Holdings(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err, "failed to build holdings")
		return
	}

	view := portfolioView{
		Holdings:     make([]holdingView, 0, len(p.Holdings)),
		TotalValue:   p.TotalValue,
		DisplayTotal: usd.Format(p.TotalValue),
		Empty:        p.Empty,
	}
	for _, hd := range p.Holdings {
		view.Holdings = append(view.Holdings, holdingView{Holding: hd, DisplayValue: usd.Format(hd.Value)})
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) portfolioHistory(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	interval, ok := queryInterval(c)
	if !ok {
		return
	}

	hist, err := h.transactions.History(c.Request.Context(), id.UserID, interval)
	if err != nil {
		h.fail(c, err, "failed to build portfolio history")
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (h *Handler) listTransactions(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	txs, err := h.transactions.List(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err, "failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *Handler) addTransaction(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	in := service.NewTransaction{CoinID: req.CoinID, Amount: req.Amount, Type: req.Type}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	tx, err := h.transactions.Add(c.Request.Context(), id.UserID, in)
	if err != nil {
		h.fail(c, err, "failed to add transaction")
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (h *Handler) updateTransaction(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	txID, ok := pathID(c)
	if !ok {
		return
	}

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	edit := repository.TransactionEdit{Amount: req.Amount, Type: req.Type}
	if req.Timestamp != nil {
		edit.Timestamp = *req.Timestamp
	}

	tx, err := h.transactions.Update(c.Request.Context(), id.UserID, txID, edit)
	if err != nil {
		h.fail(c, err, "failed to update transaction")
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) deleteTransaction(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	txID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.transactions.Delete(c.Request.Context(), id.UserID, txID); err != nil {
		h.fail(c, err, "failed to delete transaction")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction deleted"})
}
