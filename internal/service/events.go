package service

import (
	"context"
	"log"
	"time"
)

// EventPublisher is satisfied by queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// EventService emits best-effort domain events for notification/analytics
// consumers. A publish failure is logged and swallowed: events never gate a
// financial operation.
type EventService struct {
	publisher EventPublisher
}

func NewEventService(publisher EventPublisher) *EventService {
	return &EventService{publisher: publisher}
}

func (s *EventService) emit(ctx context.Context, key string, body map[string]interface{}) {
	if s == nil || s.publisher == nil {
		return
	}
	body["emitted_at"] = time.Now().UTC()
	if err := s.publisher.Publish(ctx, key, body); err != nil {
		log.Printf("[events] publish %s failed: %v", key, err)
	}
}

func (s *EventService) SessionStarted(ctx context.Context, sessionID, deviceID, customerID string) {
	s.emit(ctx, "session.started", map[string]interface{}{
		"session_id": sessionID, "device_id": deviceID, "customer_id": customerID,
	})
}

func (s *EventService) SessionStopped(ctx context.Context, sessionID, deviceID string, energyKWh float64, finalAmount, refundAmount int64) {
	s.emit(ctx, "session.stopped", map[string]interface{}{
		"session_id": sessionID, "device_id": deviceID,
		"energy_kwh": energyKWh, "final_amount": finalAmount, "refund_amount": refundAmount,
	})
}

func (s *EventService) SessionFailed(ctx context.Context, sessionID, deviceID, reason string) {
	s.emit(ctx, "session.failed", map[string]interface{}{
		"session_id": sessionID, "device_id": deviceID, "reason": reason,
	})
}

func (s *EventService) TopupCompleted(ctx context.Context, customerID, paymentID string, amountPaise int64) {
	s.emit(ctx, "wallet.topup.completed", map[string]interface{}{
		"customer_id": customerID, "payment_id": paymentID, "amount_paise": amountPaise,
	})
}

func (s *EventService) CommandDispatched(ctx context.Context, deviceID, action string) {
	s.emit(ctx, "command.dispatched", map[string]interface{}{
		"device_id": deviceID, "action": action,
	})
}
