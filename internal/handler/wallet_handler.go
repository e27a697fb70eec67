package handler

import (
	"errors"
	"net/http"
	"strconv"

	"voltpay/internal/domain"
	"voltpay/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WalletHandler struct {
	walletRepo *repository.WalletRepository
}

func NewWalletHandler(walletRepo *repository.WalletRepository) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo}
}

// customerID comes from the X-Customer-ID header; authentication is handled
// upstream of this service.
func customerID(c *gin.Context) string {
	return c.GetHeader("X-Customer-ID")
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	cid := customerID(c)
	if cid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Customer-ID required"})
		return
	}
	w, err := h.walletRepo.GetOrCreate(cid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance_paise": w.BalancePaise,
		"currency":      w.Currency,
	})
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	cid := customerID(c)
	if cid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Customer-ID required"})
		return
	}
	var f repository.TransactionFilter
	f.Type = c.Query("type")
	f.Category = c.Query("category")
	f.Status = c.Query("status")
	if v, err := parseIntQuery(c, "limit"); err == nil {
		f.Limit = v
	}
	if v, err := parseIntQuery(c, "offset"); err == nil {
		f.Offset = v
	}
	txns, err := h.walletRepo.ListTransactions(cid, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transaction lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// CreateTopup writes the local pending top-up row the payment consumer later
// matches; the caller takes the returned order id to the gateway checkout.
func (h *WalletHandler) CreateTopup(c *gin.Context) {
	cid := customerID(c)
	if cid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Customer-ID required"})
		return
	}
	var req struct {
		AmountPaise int64 `json:"amount_paise" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_paise required"})
		return
	}
	orderID := "order_" + uuid.NewString()
	txn, err := h.walletRepo.CreatePendingTopup(cid, req.AmountPaise, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "topup creation failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id":       orderID,
		"transaction_id": txn.ID,
		"amount_paise":   txn.AmountPaise,
		"status":         txn.Status,
	})
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, errors.New("empty")
	}
	return strconv.Atoi(v)
}
