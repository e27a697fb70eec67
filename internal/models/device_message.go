package models

import "time"

// DeviceMessage records command traffic with a device. The remote-command
// guard scans this history for an unterminated start.
type DeviceMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  string    `gorm:"size:64;not null;index:idx_device_created" json:"device_id"`
	MessageID string    `gorm:"size:64;index" json:"message_id"`
	Direction string    `gorm:"size:10;not null" json:"direction"` // INBOUND, OUTBOUND
	Action    string    `gorm:"size:64;not null" json:"action"`
	Payload   string    `gorm:"type:text" json:"payload"`
	CreatedAt time.Time `gorm:"index:idx_device_created" json:"created_at"`
}

func (DeviceMessage) TableName() string {
	return "device_messages"
}
