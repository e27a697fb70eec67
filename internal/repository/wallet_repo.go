package repository

import (
	"errors"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository is the ledger: the only path that mutates a wallet
// balance. Every mutation runs as one DB transaction that locks the wallet
// row, checks the reference-id idempotency guard, appends the transaction row
// and updates the balance together, so no reader ever sees a balance
// inconsistent with the latest completed transaction.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// lockForUpdate takes a row lock on engines that support it. SQLite, used in
// tests, serializes writers on its own and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *WalletRepository) GetByCustomerID(customerID string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("customer_id = ?", customerID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate lazily opens a zero-balance wallet on first touch.
func (r *WalletRepository) GetOrCreate(customerID string) (*models.Wallet, error) {
	w, err := r.GetByCustomerID(customerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &models.Wallet{CustomerID: customerID, BalancePaise: 0, Currency: "INR"}
	if err := r.db.Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WalletRepository) Credit(customerID string, amountPaise int64, description, referenceID string) (*models.WalletTransaction, error) {
	return r.apply(customerID, domain.TxnTypeCredit, domain.TxnCategoryTopup, amountPaise, description, referenceID)
}

func (r *WalletRepository) Debit(customerID string, amountPaise int64, description, referenceID string) (*models.WalletTransaction, error) {
	return r.apply(customerID, domain.TxnTypeDebit, domain.TxnCategoryCharging, amountPaise, description, referenceID)
}

func (r *WalletRepository) Refund(customerID string, amountPaise int64, description, referenceID string) (*models.WalletTransaction, error) {
	return r.apply(customerID, domain.TxnTypeRefund, domain.TxnCategoryRefund, amountPaise, description, referenceID)
}

func (r *WalletRepository) apply(customerID, txnType, category string, amountPaise int64, description, referenceID string) (*models.WalletTransaction, error) {
	if amountPaise <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if _, err := r.GetOrCreate(customerID); err != nil {
		return nil, err
	}
	var txn *models.WalletTransaction
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var w models.Wallet
		if err := lockForUpdate(tx).
			Where("customer_id = ?", customerID).First(&w).Error; err != nil {
			return err
		}
		if referenceID != "" {
			var count int64
			if err := tx.Model(&models.WalletTransaction{}).
				Where("customer_id = ? AND reference_id = ?", customerID, referenceID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return domain.ErrDuplicateTransaction
			}
		}
		before := w.BalancePaise
		var after int64
		switch txnType {
		case domain.TxnTypeDebit:
			if before < amountPaise {
				return domain.ErrInsufficientBalance
			}
			after = before - amountPaise
		default: // CREDIT, REFUND
			after = before + amountPaise
		}
		txn = &models.WalletTransaction{
			ID:            uuid.NewString(),
			WalletID:      w.ID,
			CustomerID:    customerID,
			Type:          txnType,
			AmountPaise:   amountPaise,
			BalanceBefore: before,
			BalanceAfter:  after,
			Status:        domain.TxnStatusCompleted,
			Category:      category,
			ReferenceID:   referenceID,
			Description:   description,
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		return tx.Model(&w).Update("balance_paise", after).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreatePendingTopup records the local side of a gateway top-up order before
// the money moves. The webhook consumer later completes it. The balance is
// untouched until then.
func (r *WalletRepository) CreatePendingTopup(customerID string, amountPaise int64, orderID string) (*models.WalletTransaction, error) {
	if amountPaise <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	w, err := r.GetOrCreate(customerID)
	if err != nil {
		return nil, err
	}
	var existing int64
	if err := r.db.Model(&models.WalletTransaction{}).
		Where("customer_id = ? AND reference_id = ?", customerID, orderID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, domain.ErrDuplicateTransaction
	}
	txn := &models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		CustomerID:  customerID,
		Type:        domain.TxnTypeCredit,
		AmountPaise: amountPaise,
		Status:      domain.TxnStatusPending,
		Category:    domain.TxnCategoryTopup,
		ReferenceID: orderID,
		Description: "wallet top-up",
	}
	if err := r.db.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// FindCompletedByReference answers the payment consumer's idempotency check.
func (r *WalletRepository) FindCompletedByReference(referenceID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.Where("reference_id = ? AND status = ?", referenceID, domain.TxnStatusCompleted).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *WalletRepository) FindPendingTopup(customerID, orderID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.Where("customer_id = ? AND reference_id = ? AND status = ? AND category = ?",
		customerID, orderID, domain.TxnStatusPending, domain.TxnCategoryTopup).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindRecentPendingTopupByOrder is the fallback match when the gateway event
// carries no customer id: the newest pending top-up for the order within the
// window. Exact field match only, never fuzzy.
func (r *WalletRepository) FindRecentPendingTopupByOrder(orderID string, window time.Duration) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.Where("reference_id = ? AND status = ? AND category = ? AND created_at >= ?",
		orderID, domain.TxnStatusPending, domain.TxnCategoryTopup, time.Now().Add(-window)).
		Order("created_at DESC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// CompleteTopup transitions a pending top-up to completed, credits the wallet
// and rewrites the reference to the gateway payment id, all in one DB
// transaction under the wallet row lock.
func (r *WalletRepository) CompleteTopup(txnID, paymentID string) (*models.WalletTransaction, error) {
	var completed *models.WalletTransaction
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var txn models.WalletTransaction
		if err := tx.Where("id = ?", txnID).First(&txn).Error; err != nil {
			return err
		}
		if txn.Status != domain.TxnStatusPending {
			return domain.ErrDuplicateTransaction
		}
		var w models.Wallet
		if err := lockForUpdate(tx).
			Where("id = ?", txn.WalletID).First(&w).Error; err != nil {
			return err
		}
		before := w.BalancePaise
		after := before + txn.AmountPaise
		updates := map[string]interface{}{
			"status":         domain.TxnStatusCompleted,
			"balance_before": before,
			"balance_after":  after,
			"reference_id":   paymentID,
		}
		if err := tx.Model(&txn).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(&w).Update("balance_paise", after).Error; err != nil {
			return err
		}
		txn.Status = domain.TxnStatusCompleted
		txn.BalanceBefore = before
		txn.BalanceAfter = after
		txn.ReferenceID = paymentID
		completed = &txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

type TransactionFilter struct {
	Type     string
	Category string
	Status   string
	Limit    int
	Offset   int
}

func (r *WalletRepository) ListTransactions(customerID string, f TransactionFilter) ([]models.WalletTransaction, error) {
	q := r.db.Where("customer_id = ?", customerID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	var txns []models.WalletTransaction
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&txns).Error
	return txns, err
}
