package repository

import (
	"testing"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/models"

	"github.com/stretchr/testify/require"
)

func latestCompleted(t *testing.T, repo *WalletRepository, customerID string) *models.WalletTransaction {
	t.Helper()
	txns, err := repo.ListTransactions(customerID, TransactionFilter{Status: domain.TxnStatusCompleted, Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, txns)
	return &txns[0]
}

func TestGetOrCreateLazilyOpensWallet(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	w, err := repo.GetOrCreate("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), w.BalancePaise)
	require.Equal(t, "INR", w.Currency)

	again, err := repo.GetOrCreate("cust-1")
	require.NoError(t, err)
	require.Equal(t, w.ID, again.ID)
}

func TestDebitRefundRoundTrip(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	_, err := repo.Credit("cust-1", 100000, "initial top-up", "order-seed")
	require.NoError(t, err)

	debit, err := repo.Debit("cust-1", 2200, "charging hold", "hold:sess-1")
	require.NoError(t, err)
	require.Equal(t, int64(100000), debit.BalanceBefore)
	require.Equal(t, int64(97800), debit.BalanceAfter)

	refund, err := repo.Refund("cust-1", 2200, "session refund", "sess-1")
	require.NoError(t, err)
	require.Equal(t, int64(97800), refund.BalanceBefore)
	require.Equal(t, int64(100000), refund.BalanceAfter)

	// Replaying the same refund must change nothing.
	_, err = repo.Refund("cust-1", 2200, "session refund", "sess-1")
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)

	w, err := repo.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(100000), w.BalancePaise)

	refunds, err := repo.ListTransactions("cust-1", TransactionFilter{Type: domain.TxnTypeRefund})
	require.NoError(t, err)
	require.Len(t, refunds, 1)
}

func TestDebitInsufficientBalance(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	_, err := repo.Credit("cust-1", 100, "small top-up", "order-1")
	require.NoError(t, err)

	_, err = repo.Debit("cust-1", 500, "charging hold", "hold:sess-1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	w, err := repo.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), w.BalancePaise)
}

func TestInvalidAmountRejected(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	_, err := repo.Credit("cust-1", 0, "zero", "")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = repo.Debit("cust-1", -5, "negative", "")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestBalanceAlwaysMatchesLatestCompletedTransaction(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	_, err := repo.Credit("cust-1", 50000, "top-up", "order-1")
	require.NoError(t, err)
	_, err = repo.Debit("cust-1", 5000, "hold", "hold:s1")
	require.NoError(t, err)
	_, err = repo.Refund("cust-1", 2640, "refund", "s1")
	require.NoError(t, err)

	w, err := repo.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, latestCompleted(t, repo, "cust-1").BalanceAfter, w.BalancePaise)

	// Every row is internally consistent.
	all, err := repo.ListTransactions("cust-1", TransactionFilter{Status: domain.TxnStatusCompleted, Limit: 100})
	require.NoError(t, err)
	for _, txn := range all {
		switch txn.Type {
		case domain.TxnTypeDebit:
			require.Equal(t, txn.BalanceBefore-txn.AmountPaise, txn.BalanceAfter, "txn %s", txn.ID)
		default:
			require.Equal(t, txn.BalanceBefore+txn.AmountPaise, txn.BalanceAfter, "txn %s", txn.ID)
		}
	}
}

func TestPendingTopupLifecycle(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	pending, err := repo.CreatePendingTopup("cust-1", 25000, "order-77")
	require.NoError(t, err)
	require.Equal(t, domain.TxnStatusPending, pending.Status)

	// Pending money is not spendable.
	w, err := repo.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), w.BalancePaise)

	// Same order id cannot open a second pending row.
	_, err = repo.CreatePendingTopup("cust-1", 25000, "order-77")
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)

	completed, err := repo.CompleteTopup(pending.ID, "pay-123")
	require.NoError(t, err)
	require.Equal(t, domain.TxnStatusCompleted, completed.Status)
	require.Equal(t, "pay-123", completed.ReferenceID)
	require.Equal(t, int64(0), completed.BalanceBefore)
	require.Equal(t, int64(25000), completed.BalanceAfter)

	w, err = repo.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), w.BalancePaise)

	// Completing twice is a duplicate, not a second credit.
	_, err = repo.CompleteTopup(pending.ID, "pay-123")
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)
	w, err = repo.GetByCustomerID("cust-1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), w.BalancePaise)
}

func TestFindRecentPendingTopupByOrderHonorsWindow(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)

	pending, err := repo.CreatePendingTopup("cust-1", 10000, "order-9")
	require.NoError(t, err)

	found, err := repo.FindRecentPendingTopupByOrder("order-9", 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, pending.ID, found.ID)

	// Age the row out of the window.
	err = db.Model(&models.WalletTransaction{}).
		Where("id = ?", pending.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	found, err = repo.FindRecentPendingTopupByOrder("order-9", 10*time.Minute)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestListTransactionsFilters(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	_, err := repo.Credit("cust-1", 1000, "a", "r1")
	require.NoError(t, err)
	_, err = repo.Debit("cust-1", 200, "b", "r2")
	require.NoError(t, err)
	_, err = repo.Credit("cust-2", 500, "c", "r3")
	require.NoError(t, err)

	mine, err := repo.ListTransactions("cust-1", TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	debits, err := repo.ListTransactions("cust-1", TransactionFilter{Type: domain.TxnTypeDebit})
	require.NoError(t, err)
	require.Len(t, debits, 1)
	require.Equal(t, int64(200), debits[0].AmountPaise)
}
