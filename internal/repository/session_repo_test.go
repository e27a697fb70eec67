package repository

import (
	"testing"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/models"

	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, repo *SessionRepository, sessionID, deviceID string) *models.ChargingSession {
	t.Helper()
	s := &models.ChargingSession{
		SessionID:      sessionID,
		DeviceID:       deviceID,
		ConnectorID:    1,
		CustomerID:     "cust-1",
		Status:         domain.SessionStatusActive,
		StartTime:      time.Now().Add(-10 * time.Minute),
		AmountDeducted: 5000,
		BaseRatePaise:  1000,
		TaxPercent:     18,
	}
	require.NoError(t, repo.Create(s))
	return s
}

func TestFindOpenByDevice(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	found, err := repo.FindOpenByDevice("dev-1")
	require.NoError(t, err)
	require.Nil(t, found)

	s := openSession(t, repo, "sess-1", "dev-1")

	found, err = repo.FindOpenByDevice("dev-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, s.SessionID, found.SessionID)

	// A settled session is no longer open.
	start := int64(1000)
	end := int64(3000)
	require.NoError(t, repo.Settle(s.SessionID, time.Now(), domain.StopReasonCustomer, &start, &end, 2.0, 2360, 2640))

	found, err = repo.FindOpenByDevice("dev-1")
	require.NoError(t, err)
	require.Nil(t, found)

	settled, err := repo.GetByID(s.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusStopped, settled.Status)
	require.NotNil(t, settled.EndTime)
	require.Equal(t, int64(2360), settled.FinalAmount)
	require.Equal(t, int64(2640), settled.RefundAmount)
	require.InDelta(t, 2.0, settled.EnergyConsumed, 1e-9)
}

func TestMarkActiveOnlyFromPending(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))
	s := &models.ChargingSession{
		SessionID:  "sess-p",
		DeviceID:   "dev-2",
		CustomerID: "cust-1",
		Status:     domain.SessionStatusPending,
		StartTime:  time.Now(),
	}
	require.NoError(t, repo.Create(s))
	require.NoError(t, repo.MarkActive("sess-p"))

	got, err := repo.GetByID("sess-p")
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusActive, got.Status)
}

func TestMarkFailed(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))
	openSession(t, repo, "sess-f", "dev-3")
	require.NoError(t, repo.MarkFailed("sess-f", "charger fault"))

	got, err := repo.GetByID("sess-f")
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusFailed, got.Status)
	require.Equal(t, "charger fault", got.StopReason)
}
