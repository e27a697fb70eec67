package repository

import (
	"errors"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(s *models.ChargingSession) error {
	return r.db.Create(s).Error
}

func (r *SessionRepository) GetByID(sessionID string) (*models.ChargingSession, error) {
	var s models.ChargingSession
	err := r.db.Where("session_id = ?", sessionID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOpenByDevice returns the device's open session: PENDING or ACTIVE with
// no end time. At most one exists per device.
func (r *SessionRepository) FindOpenByDevice(deviceID string) (*models.ChargingSession, error) {
	var s models.ChargingSession
	err := r.db.Where("device_id = ? AND status IN ? AND end_time IS NULL",
		deviceID, []string{domain.SessionStatusPending, domain.SessionStatusActive}).
		Order("start_time DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindRecentStopped returns the newest stopped session for a device,
// narrowed to an exact session id when the caller has one. Settlement uses it
// to finish a refund a crashed delivery left behind.
func (r *SessionRepository) FindRecentStopped(deviceID, sessionID string) (*models.ChargingSession, error) {
	q := r.db.Where("device_id = ? AND status = ?", deviceID, domain.SessionStatusStopped)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var s models.ChargingSession
	err := q.Order("end_time DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) MarkActive(sessionID string) error {
	return r.db.Model(&models.ChargingSession{}).
		Where("session_id = ? AND status = ?", sessionID, domain.SessionStatusPending).
		Update("status", domain.SessionStatusActive).Error
}

// Settle writes the terminal outcome of a session in one update.
func (r *SessionRepository) Settle(sessionID string, endTime time.Time, stopReason string,
	meterStart, meterEnd *int64, energyKWh float64, finalAmount, refundAmount int64) error {
	return r.db.Model(&models.ChargingSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":          domain.SessionStatusStopped,
			"end_time":        endTime,
			"stop_reason":     stopReason,
			"meter_start":     meterStart,
			"meter_end":       meterEnd,
			"energy_consumed": energyKWh,
			"final_amount":    finalAmount,
			"refund_amount":   refundAmount,
		}).Error
}

func (r *SessionRepository) MarkFailed(sessionID, reason string) error {
	now := time.Now()
	return r.db.Model(&models.ChargingSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":      domain.SessionStatusFailed,
			"end_time":    now,
			"stop_reason": reason,
		}).Error
}
