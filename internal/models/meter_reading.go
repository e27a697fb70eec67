package models

import "time"

// MeterReading is one energy sample reported by a device. Settlement picks
// readings by timestamp; MessageID deduplicates re-delivered telemetry.
type MeterReading struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DeviceID      string    `gorm:"size:64;not null;index:idx_device_reading" json:"device_id"`
	TransactionID string    `gorm:"size:64;index" json:"transaction_id"`
	ValueWh       int64     `gorm:"not null" json:"value_wh"`
	ReadingAt     time.Time `gorm:"not null;index:idx_device_reading" json:"reading_at"`
	MessageID     string    `gorm:"size:64;uniqueIndex" json:"message_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (MeterReading) TableName() string {
	return "meter_readings"
}
