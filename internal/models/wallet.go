package models

import (
	"time"

	"gorm.io/gorm"
)

type Wallet struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CustomerID   string         `gorm:"size:64;uniqueIndex;not null" json:"customer_id"`
	BalancePaise int64          `gorm:"not null;default:0" json:"balance_paise"`
	Currency     string         `gorm:"size:3;default:'INR'" json:"currency"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
