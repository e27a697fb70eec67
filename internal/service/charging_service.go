package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"voltpay/internal/charger"
	"voltpay/internal/domain"
	"voltpay/internal/models"
	"voltpay/internal/repository"

	"github.com/google/uuid"
)

// QueueSink enqueues work-queue messages; satisfied by queue.Publisher.
type QueueSink interface {
	PublishToQueue(ctx context.Context, queue string, body interface{}) error
}

// ChargingService orchestrates remote start/stop. A start takes the wallet
// hold before the command goes out; the stop path only dispatches the command
// and hands the acknowledgement to the settlement queue, so customer-,
// operator- and charger-initiated stops all settle identically.
type ChargingService struct {
	sessions *repository.SessionRepository
	devices  *repository.DeviceRepository
	points   *repository.ChargingPointRepository
	wallet   *repository.WalletRepository
	guard    *RemoteCommandGuard
	bridge   charger.CommandSender
	events   *EventService
	sink     QueueSink

	stopAckQueue   string
	holdPaise      int64
	commandTimeout time.Duration
}

func NewChargingService(
	sessions *repository.SessionRepository,
	devices *repository.DeviceRepository,
	points *repository.ChargingPointRepository,
	wallet *repository.WalletRepository,
	guard *RemoteCommandGuard,
	bridge charger.CommandSender,
	events *EventService,
	sink QueueSink,
	stopAckQueue string,
	holdPaise int64,
	commandTimeout time.Duration,
) *ChargingService {
	return &ChargingService{
		sessions:       sessions,
		devices:        devices,
		points:         points,
		wallet:         wallet,
		guard:          guard,
		bridge:         bridge,
		events:         events,
		sink:           sink,
		stopAckQueue:   stopAckQueue,
		holdPaise:      holdPaise,
		commandTimeout: commandTimeout,
	}
}

var ErrStartRejected = errors.New("remote start rejected by charger")

// Start runs guard -> hold -> dispatch -> session create. On a bridge
// timeout the hold is kept and the session is left PENDING: the charger may
// have started anyway, and settlement or reconciliation decides later.
func (s *ChargingService) Start(ctx context.Context, customerID, deviceID string, connectorID int, chargingPointID string) (*models.ChargingSession, error) {
	if customerID == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: customer and device required", domain.ErrValidation)
	}
	if err := s.guard.Check(deviceID); err != nil {
		return nil, err
	}

	var baseRate int64
	var taxPercent float64
	if chargingPointID != "" {
		point, err := s.points.GetByID(chargingPointID)
		if err != nil {
			return nil, fmt.Errorf("charging point lookup: %w", err)
		}
		if point != nil {
			baseRate = point.BaseRatePaise
			taxPercent = point.TaxPercent
		}
	}

	sessionID := uuid.NewString()
	if _, err := s.wallet.Debit(customerID, s.holdPaise, "charging hold", "hold:"+sessionID); err != nil {
		return nil, err
	}

	startPayload := map[string]interface{}{
		"connector_id": connectorID,
		"session_id":   sessionID,
	}
	s.recordCommand(deviceID, domain.ActionRemoteStart, startPayload)
	resp, err := s.bridge.SendCommand(ctx, deviceID, domain.ActionRemoteStart, startPayload, s.commandTimeout)

	session := &models.ChargingSession{
		SessionID:       sessionID,
		DeviceID:        deviceID,
		ConnectorID:     connectorID,
		CustomerID:      customerID,
		ChargingPointID: chargingPointID,
		StartTime:       time.Now(),
		AmountDeducted:  s.holdPaise,
		BaseRatePaise:   baseRate,
		TaxPercent:      taxPercent,
	}

	switch {
	case errors.Is(err, domain.ErrDeviceTimeout):
		// Unknown outcome: keep the hold, leave the session pending.
		session.Status = domain.SessionStatusPending
		if createErr := s.sessions.Create(session); createErr != nil {
			log.Printf("[charging] session=%s create after timeout failed: %v", sessionID, createErr)
		}
		log.Printf("[charging] session=%s start timed out on device=%s, verify status", sessionID, deviceID)
		return session, domain.ErrDeviceTimeout
	case err != nil:
		s.releaseHold(customerID, sessionID, "start failed")
		return nil, err
	case resp.Status != domain.CommandAccepted:
		s.releaseHold(customerID, sessionID, "start rejected")
		return nil, fmt.Errorf("%w: device=%s", ErrStartRejected, deviceID)
	}

	session.Status = domain.SessionStatusActive
	if err := s.sessions.Create(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.recordAck(deviceID, domain.ActionRemoteStart, resp)
	s.guard.MarkDispatched(deviceID)
	s.events.CommandDispatched(ctx, deviceID, domain.ActionRemoteStart)
	s.events.SessionStarted(ctx, sessionID, deviceID, customerID)
	log.Printf("[charging] session=%s started device=%s customer=%s hold=%d", sessionID, deviceID, customerID, s.holdPaise)
	return session, nil
}

// Stop dispatches a remote stop and, once the charger accepts, publishes the
// acknowledgement onto the settlement queue. Billing never happens inline.
func (s *ChargingService) Stop(ctx context.Context, deviceID, reason string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device required", domain.ErrValidation)
	}
	session, err := s.sessions.FindOpenByDevice(deviceID)
	if err != nil {
		return fmt.Errorf("open session lookup: %w", err)
	}
	if session == nil {
		return fmt.Errorf("%w: no open session for device %s", domain.ErrNotFound, deviceID)
	}

	stopPayload := map[string]interface{}{
		"session_id": session.SessionID,
	}
	s.recordCommand(deviceID, domain.ActionRemoteStop, stopPayload)
	resp, err := s.bridge.SendCommand(ctx, deviceID, domain.ActionRemoteStop, stopPayload, s.commandTimeout)
	if err != nil {
		return err
	}
	if resp.Status != domain.CommandAccepted {
		return fmt.Errorf("remote stop rejected by device %s", deviceID)
	}
	s.recordAck(deviceID, domain.ActionRemoteStop, resp)

	ack := StopAck{
		DeviceID:      deviceID,
		TransactionID: session.SessionID,
		Status:        resp.Status,
		Reason:        reason,
	}
	if err := s.sink.PublishToQueue(ctx, s.stopAckQueue, ack); err != nil {
		// The charger already stopped; settlement must not be lost.
		return fmt.Errorf("enqueue stop ack session=%s: %w", session.SessionID, err)
	}
	log.Printf("[charging] session=%s stop accepted device=%s reason=%s", session.SessionID, deviceID, reason)
	return nil
}

// releaseHold undoes the start hold when dispatch fails outright.
func (s *ChargingService) releaseHold(customerID, sessionID, why string) {
	if _, err := s.wallet.Refund(customerID, s.holdPaise, "hold release: "+why, "release:"+sessionID); err != nil {
		log.Printf("[charging] session=%s hold release failed: %v", sessionID, err)
	}
}

// recordCommand logs the dispatched command into the device message history.
func (s *ChargingService) recordCommand(deviceID, action string, payload map[string]interface{}) {
	raw, _ := json.Marshal(payload)
	if err := s.devices.RecordMessage(&models.DeviceMessage{
		DeviceID:  deviceID,
		MessageID: uuid.NewString(),
		Direction: domain.DirectionOutbound,
		Action:    action,
		Payload:   string(raw),
	}); err != nil {
		log.Printf("[charging] record %s command for device=%s failed: %v", action, deviceID, err)
	}
}

func (s *ChargingService) recordAck(deviceID, action string, resp *charger.CommandResponse) {
	payload, _ := json.Marshal(resp)
	if err := s.devices.RecordMessage(&models.DeviceMessage{
		DeviceID:  deviceID,
		MessageID: resp.MessageID,
		Direction: domain.DirectionInbound,
		Action:    action,
		Payload:   string(payload),
	}); err != nil {
		log.Printf("[charging] record %s ack for device=%s failed: %v", action, deviceID, err)
	}
}
