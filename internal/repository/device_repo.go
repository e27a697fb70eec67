package repository

import (
	"errors"
	"time"

	"voltpay/internal/models"

	"gorm.io/gorm"
)

// DeviceRepository stores the message history and meter telemetry that
// settlement and the remote-command guard read.
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) RecordMessage(m *models.DeviceMessage) error {
	return r.db.Create(m).Error
}

// RecentMessages returns message history for a device within the lookback
// window, newest first.
func (r *DeviceRepository) RecentMessages(deviceID string, lookback time.Duration) ([]models.DeviceMessage, error) {
	var msgs []models.DeviceMessage
	err := r.db.Where("device_id = ? AND created_at >= ?", deviceID, time.Now().Add(-lookback)).
		Order("created_at DESC").
		Find(&msgs).Error
	return msgs, err
}

// RecordReading ignores telemetry the device already delivered once; the
// charger re-sends samples after connectivity gaps.
func (r *DeviceRepository) RecordReading(m *models.MeterReading) error {
	err := r.db.Create(m).Error
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

// FirstReadingAfter is the meter-start fallback when the session stored none.
func (r *DeviceRepository) FirstReadingAfter(deviceID string, t time.Time) (*models.MeterReading, error) {
	var m models.MeterReading
	err := r.db.Where("device_id = ? AND reading_at >= ?", deviceID, t).
		Order("reading_at ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LatestReading returns the newest sample for the device, taken as meter end.
func (r *DeviceRepository) LatestReading(deviceID string) (*models.MeterReading, error) {
	var m models.MeterReading
	err := r.db.Where("device_id = ?", deviceID).
		Order("reading_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
