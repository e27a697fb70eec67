package models

import "time"

type ChargingPoint struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:128" json:"name"`
	BaseRatePaise int64     `gorm:"not null;default:0" json:"base_rate_paise"` // per kWh
	TaxPercent    float64   `gorm:"not null;default:0" json:"tax_percent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ChargingPoint) TableName() string {
	return "charging_points"
}
