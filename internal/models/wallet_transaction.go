package models

import (
	"time"
)

// WalletTransaction is the append-only ledger. The wallet balance is derived
// state: it must always equal BalanceAfter of the latest COMPLETED row.
type WalletTransaction struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	WalletID      uint      `gorm:"not null;index" json:"wallet_id"`
	CustomerID    string    `gorm:"size:64;not null;index:idx_customer_reference" json:"customer_id"`
	Type          string    `gorm:"size:10;not null" json:"type"`   // CREDIT, DEBIT, REFUND
	AmountPaise   int64     `gorm:"not null" json:"amount_paise"`   // always positive; Type carries the sign
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Status        string    `gorm:"size:10;not null;index" json:"status"`   // PENDING, COMPLETED, FAILED
	Category      string    `gorm:"size:16;not null;index" json:"category"` // TOPUP, CHARGING, REFUND, ADJUSTMENT
	// ReferenceID correlates with the outside world: gateway order/payment id
	// or charging session id. Uniqueness per customer is enforced by the
	// ledger under the wallet row lock; rows without a reference are exempt.
	ReferenceID string `gorm:"size:128;index:idx_customer_reference" json:"reference_id"`
	Description   string    `gorm:"size:255" json:"description"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
