package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/models"
	"voltpay/internal/repository"
)

const EventPaymentCaptured = "payment.captured"

// PaymentEvent is the gateway webhook payload as published onto the payment
// queue. The customer id rides in order metadata when the gateway echoes it.
type PaymentEvent struct {
	Type    string `json:"type"`
	Payload struct {
		Payment struct {
			ID      string `json:"id"`
			OrderID string `json:"order_id"`
			Amount  int64  `json:"amount"` // paise
			Status  string `json:"status"`
		} `json:"payment"`
		Order struct {
			CustomerID string `json:"customer_id"`
			Purpose    string `json:"purpose"`
		} `json:"order"`
	} `json:"payload"`
}

// PaymentSettlementService turns a captured-payment event into exactly one
// completed wallet credit. It runs on the queue at concurrency 1 so two
// events for the same order are never settled side by side.
type PaymentSettlementService struct {
	wallet      *repository.WalletRepository
	events      *EventService
	matchWindow time.Duration
}

func NewPaymentSettlementService(wallet *repository.WalletRepository, events *EventService, matchWindow time.Duration) *PaymentSettlementService {
	if matchWindow <= 0 {
		matchWindow = 10 * time.Minute
	}
	return &PaymentSettlementService{wallet: wallet, events: events, matchWindow: matchWindow}
}

// Handle is the queue handler. Validation failures ack without retry; a
// missing pending counterpart retries, since the webhook can outrun the local
// pending-order write.
func (s *PaymentSettlementService) Handle(ctx context.Context, body []byte) error {
	var evt PaymentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: bad payment event: %v", domain.ErrValidation, err)
	}
	p := evt.Payload.Payment
	if p.ID == "" || p.OrderID == "" {
		return fmt.Errorf("%w: payment event missing id or order_id", domain.ErrValidation)
	}
	if evt.Type != EventPaymentCaptured || p.Status != "captured" {
		log.Printf("[payment] ignoring event type=%s status=%s order=%s", evt.Type, p.Status, p.OrderID)
		return nil
	}
	if purpose := evt.Payload.Order.Purpose; purpose != "" && purpose != "wallet_topup" {
		log.Printf("[payment] ignoring non-topup purpose=%s order=%s", purpose, p.OrderID)
		return nil
	}

	// Idempotency: a completed credit already referencing this payment means
	// a webhook retry; acknowledge with no new effect.
	if done, err := s.wallet.FindCompletedByReference(p.ID); err != nil {
		return fmt.Errorf("idempotency lookup: %w", err)
	} else if done != nil {
		log.Printf("[payment] payment=%s already settled, ignoring replay", p.ID)
		return nil
	}

	pending, err := s.findPending(evt)
	if err != nil {
		return err
	}
	if pending == nil {
		// The local pending row may not be committed yet; let the queue retry.
		return fmt.Errorf("%w: no pending top-up for order %s", domain.ErrNotFound, p.OrderID)
	}
	if p.Amount > 0 && p.Amount != pending.AmountPaise {
		log.Printf("[payment] order=%s captured=%d pending=%d amount mismatch, crediting pending amount", p.OrderID, p.Amount, pending.AmountPaise)
	}

	completed, err := s.wallet.CompleteTopup(pending.ID, p.ID)
	if err != nil {
		if domain.Permanent(err) {
			// Another delivery won the transition; the credit exists.
			log.Printf("[payment] order=%s settled concurrently: %v", p.OrderID, err)
			return nil
		}
		return fmt.Errorf("complete topup order=%s: %w", p.OrderID, err)
	}
	log.Printf("[payment] credited customer=%s amount=%d payment=%s", completed.CustomerID, completed.AmountPaise, p.ID)
	s.events.TopupCompleted(ctx, completed.CustomerID, p.ID, completed.AmountPaise)
	return nil
}

func (s *PaymentSettlementService) findPending(evt PaymentEvent) (*models.WalletTransaction, error) {
	p := evt.Payload.Payment
	if customerID := evt.Payload.Order.CustomerID; customerID != "" {
		return s.wallet.FindPendingTopup(customerID, p.OrderID)
	}
	// No customer id in the event: newest pending row for the order inside
	// the match window. Exact order id only, never fuzzy.
	return s.wallet.FindRecentPendingTopupByOrder(p.OrderID, s.matchWindow)
}
