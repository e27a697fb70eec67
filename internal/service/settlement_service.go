package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/models"
	"voltpay/internal/repository"
)

// StopAck is the charger's acknowledgement of a stop, regardless of who asked
// for it: customer, operator, or the charger itself.
type StopAck struct {
	DeviceID      string `json:"device_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// MeterValue is one telemetry sample from a device.
type MeterValue struct {
	DeviceID      string    `json:"device_id"`
	TransactionID string    `json:"transaction_id"`
	MessageID     string    `json:"message_id"`
	ValueWh       int64     `json:"value_wh"`
	Timestamp     time.Time `json:"timestamp"`
}

// SettlementService converts a stopped session's meter delta into a bill and
// refunds the unused part of the hold. Re-delivery is harmless: the refund
// carries the session id as its reference, so the ledger's duplicate guard
// keeps the financial effect to exactly one.
type SettlementService struct {
	sessions  *repository.SessionRepository
	devices   *repository.DeviceRepository
	wallet    *repository.WalletRepository
	events    *EventService
	graceWait time.Duration
}

func NewSettlementService(sessions *repository.SessionRepository, devices *repository.DeviceRepository,
	wallet *repository.WalletRepository, events *EventService, graceWait time.Duration) *SettlementService {
	return &SettlementService{
		sessions:  sessions,
		devices:   devices,
		wallet:    wallet,
		events:    events,
		graceWait: graceWait,
	}
}

// HandleStopAck is the queue handler for charger.stop.ack.
func (s *SettlementService) HandleStopAck(ctx context.Context, body []byte) error {
	var ack StopAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("%w: bad stop ack: %v", domain.ErrValidation, err)
	}
	if ack.DeviceID == "" {
		return fmt.Errorf("%w: stop ack missing device_id", domain.ErrValidation)
	}
	if ack.Status != "" && ack.Status != domain.CommandAccepted {
		// The charger refused the stop; the session is still running.
		log.Printf("[settlement] ignoring stop ack status=%s device=%s", ack.Status, ack.DeviceID)
		return nil
	}
	session, err := s.sessions.FindOpenByDevice(ack.DeviceID)
	if err != nil {
		return fmt.Errorf("open session lookup device=%s: %w", ack.DeviceID, err)
	}
	if session == nil {
		return s.recoverSettledRefund(ack)
	}
	if err := s.Settle(ctx, session, ack.Reason); err != nil {
		// The stop itself already happened at the charger; the session stays
		// open awaiting reconciliation rather than being silently dropped.
		log.Printf("[settlement] session=%s settle failed: %v", session.SessionID, err)
		return err
	}
	return nil
}

// recoverSettledRefund handles a stop ack whose session is already settled.
// Usually a plain redelivery, but the earlier delivery may have died between
// persisting the settlement and crediting the refund. Re-issue it from the
// persisted amount; the session-id reference keeps the effect to exactly one.
func (s *SettlementService) recoverSettledRefund(ack StopAck) error {
	session, err := s.sessions.FindRecentStopped(ack.DeviceID, ack.TransactionID)
	if err != nil {
		return fmt.Errorf("stopped session lookup device=%s: %w", ack.DeviceID, err)
	}
	if session == nil || session.RefundAmount <= 0 {
		log.Printf("[settlement] no open session for device=%s, ignoring", ack.DeviceID)
		return nil
	}
	_, err = s.wallet.Refund(session.CustomerID, session.RefundAmount,
		fmt.Sprintf("refund for charging session %s", session.SessionID), session.SessionID)
	if err != nil {
		if domain.Permanent(err) {
			// Already credited; this really was just a redelivery.
			return nil
		}
		return fmt.Errorf("recover refund session=%s: %w", session.SessionID, err)
	}
	log.Printf("[settlement] session=%s issued missing refund=%d on redelivery", session.SessionID, session.RefundAmount)
	return nil
}

// Settle runs steps meter resolution -> billing -> persist -> refund.
func (s *SettlementService) Settle(ctx context.Context, session *models.ChargingSession, reason string) error {
	meterStart := session.MeterStart
	if meterStart == nil {
		first, err := s.devices.FirstReadingAfter(session.DeviceID, session.StartTime)
		if err != nil {
			return fmt.Errorf("meter start lookup: %w", err)
		}
		if first != nil {
			meterStart = &first.ValueWh
		}
	}

	// Give the charger a moment to push its final meter value.
	if s.graceWait > 0 {
		select {
		case <-time.After(s.graceWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var meterEnd *int64
	latest, err := s.devices.LatestReading(session.DeviceID)
	if err != nil {
		return fmt.Errorf("meter end lookup: %w", err)
	}
	if latest != nil {
		meterEnd = &latest.ValueWh
	}

	energyKWh := 0.0
	if meterStart != nil && meterEnd != nil {
		energyKWh = math.Max(0, float64(*meterEnd-*meterStart)/1000.0)
	}
	calculated := int64(0)
	if energyKWh > 0 && session.BaseRatePaise > 0 {
		calculated = int64(math.Round(energyKWh * float64(session.BaseRatePaise) * (1 + session.TaxPercent/100)))
	}
	finalAmount := calculated
	if finalAmount > session.AmountDeducted {
		// Never bill past the hold.
		finalAmount = session.AmountDeducted
	}
	refundAmount := session.AmountDeducted - finalAmount

	if reason == "" {
		reason = domain.StopReasonCharger
	}
	endTime := time.Now()
	if err := s.sessions.Settle(session.SessionID, endTime, reason, meterStart, meterEnd, energyKWh, finalAmount, refundAmount); err != nil {
		return fmt.Errorf("persist settlement: %w", err)
	}
	log.Printf("[settlement] session=%s energy=%.3fkWh billed=%d refund=%d reason=%s",
		session.SessionID, energyKWh, finalAmount, refundAmount, reason)

	if refundAmount > 0 {
		_, err := s.wallet.Refund(session.CustomerID, refundAmount,
			fmt.Sprintf("refund for charging session %s", session.SessionID), session.SessionID)
		if err != nil {
			if domain.Permanent(err) {
				// Duplicate reference: the refund already happened on an
				// earlier delivery of this ack.
				log.Printf("[settlement] session=%s refund already issued: %v", session.SessionID, err)
			} else {
				return fmt.Errorf("refund session=%s: %w", session.SessionID, err)
			}
		}
	}

	s.events.SessionStopped(ctx, session.SessionID, session.DeviceID, energyKWh, finalAmount, refundAmount)
	return nil
}

// HandleMeterValue is the queue handler for device telemetry. Duplicate
// message ids are dropped at the store.
func (s *SettlementService) HandleMeterValue(ctx context.Context, body []byte) error {
	var mv MeterValue
	if err := json.Unmarshal(body, &mv); err != nil {
		return fmt.Errorf("%w: bad meter value: %v", domain.ErrValidation, err)
	}
	if mv.DeviceID == "" || mv.MessageID == "" {
		return fmt.Errorf("%w: meter value missing device_id or message_id", domain.ErrValidation)
	}
	if mv.Timestamp.IsZero() {
		mv.Timestamp = time.Now()
	}
	return s.devices.RecordReading(&models.MeterReading{
		DeviceID:      mv.DeviceID,
		TransactionID: mv.TransactionID,
		ValueWh:       mv.ValueWh,
		ReadingAt:     mv.Timestamp,
		MessageID:     mv.MessageID,
	})
}
