package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"voltpay/internal/domain"

	"github.com/stretchr/testify/require"
)

func capturedEvent(orderID, paymentID, customerID string, amount int64) []byte {
	customer := ""
	if customerID != "" {
		customer = fmt.Sprintf(`"customer_id":%q,`, customerID)
	}
	return []byte(fmt.Sprintf(`{
		"type": "payment.captured",
		"payload": {
			"payment": {"id": %q, "order_id": %q, "amount": %d, "status": "captured"},
			"order": {%s"purpose": "wallet_topup"}
		}
	}`, paymentID, orderID, amount, customer))
}

func newPaymentSvc(t *testing.T) (*PaymentSettlementService, testRepos) {
	t.Helper()
	repos := newTestRepos(t)
	svc := NewPaymentSettlementService(repos.wallet, NewEventService(nil), 10*time.Minute)
	return svc, repos
}

func TestWebhookBeforePendingRowRetriesThenSettles(t *testing.T) {
	svc, repos := newPaymentSvc(t)
	event := capturedEvent("order-1", "pay-1", "cust-1", 25000)

	// The webhook outran the local pending write: retryable, not permanent.
	err := svc.Handle(context.Background(), event)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.False(t, domain.Permanent(err))

	_, err = repos.wallet.CreatePendingTopup("cust-1", 25000, "order-1")
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), event))

	w, err := repos.wallet.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), w.BalancePaise)

	// The completed credit now references the payment id.
	done, err := repos.wallet.FindCompletedByReference("pay-1")
	require.NoError(t, err)
	require.NotNil(t, done)
	require.Equal(t, domain.TxnStatusCompleted, done.Status)
}

func TestWebhookReplayHasNoSecondEffect(t *testing.T) {
	svc, repos := newPaymentSvc(t)
	_, err := repos.wallet.CreatePendingTopup("cust-1", 25000, "order-1")
	require.NoError(t, err)
	event := capturedEvent("order-1", "pay-1", "cust-1", 25000)

	require.NoError(t, svc.Handle(context.Background(), event))
	require.NoError(t, svc.Handle(context.Background(), event))
	require.NoError(t, svc.Handle(context.Background(), event))

	w, err := repos.wallet.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), w.BalancePaise)
}

func TestFallbackMatchWithoutCustomerID(t *testing.T) {
	svc, repos := newPaymentSvc(t)
	_, err := repos.wallet.CreatePendingTopup("cust-1", 9900, "order-2")
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), capturedEvent("order-2", "pay-2", "", 9900)))

	w, err := repos.wallet.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(9900), w.BalancePaise)
}

func TestNonCapturedStatusIsIgnored(t *testing.T) {
	svc, repos := newPaymentSvc(t)
	_, err := repos.wallet.CreatePendingTopup("cust-1", 9900, "order-3")
	require.NoError(t, err)

	event := []byte(`{
		"type": "payment.captured",
		"payload": {"payment": {"id": "pay-3", "order_id": "order-3", "amount": 9900, "status": "failed"}}
	}`)
	require.NoError(t, svc.Handle(context.Background(), event))

	w, err := repos.wallet.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), w.BalancePaise)
}

func TestNonTopupPurposeIsIgnored(t *testing.T) {
	svc, _ := newPaymentSvc(t)
	event := []byte(`{
		"type": "payment.captured",
		"payload": {
			"payment": {"id": "pay-4", "order_id": "order-4", "amount": 100, "status": "captured"},
			"order": {"purpose": "invoice"}
		}
	}`)
	require.NoError(t, svc.Handle(context.Background(), event))
}

func TestMalformedEventsAckWithoutRetry(t *testing.T) {
	svc, _ := newPaymentSvc(t)

	err := svc.Handle(context.Background(), []byte("{"))
	require.ErrorIs(t, err, domain.ErrValidation)
	require.True(t, domain.Permanent(err))

	err = svc.Handle(context.Background(), []byte(`{"type":"payment.captured","payload":{"payment":{"status":"captured"}}}`))
	require.ErrorIs(t, err, domain.ErrValidation)
}
