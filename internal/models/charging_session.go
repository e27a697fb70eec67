package models

import (
	"time"
)

// ChargingSession is created when a remote start is accepted and mutated only
// by settlement when the stop is acknowledged. STOPPED/COMPLETED/FAILED are
// terminal.
type ChargingSession struct {
	SessionID       string     `gorm:"primaryKey;size:36" json:"session_id"`
	DeviceID        string     `gorm:"size:64;not null;index" json:"device_id"`
	ConnectorID     int        `gorm:"not null" json:"connector_id"`
	CustomerID      string     `gorm:"size:64;not null;index" json:"customer_id"`
	ChargingPointID string     `gorm:"size:64" json:"charging_point_id"`
	Status          string     `gorm:"size:12;not null;index" json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	MeterStart      *int64     `json:"meter_start"` // Wh
	MeterEnd        *int64     `json:"meter_end"`   // Wh
	EnergyConsumed  float64    `json:"energy_consumed"` // kWh
	AmountDeducted  int64      `json:"amount_deducted"` // hold taken at start, paise
	FinalAmount     int64      `json:"final_amount"`
	RefundAmount    int64      `json:"refund_amount"`
	StopReason      string     `gorm:"size:32" json:"stop_reason"`
	// Tariff snapshot taken at start so settlement is immune to later edits.
	BaseRatePaise int64   `json:"base_rate_paise"` // per kWh
	TaxPercent    float64 `json:"tax_percent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ChargingSession) TableName() string {
	return "charging_sessions"
}
