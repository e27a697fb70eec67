package service

import (
	"testing"

	"voltpay/internal/models"
	"voltpay/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testRepos struct {
	wallet   *repository.WalletRepository
	sessions *repository.SessionRepository
	devices  *repository.DeviceRepository
	points   *repository.ChargingPointRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.ChargingSession{},
		&models.ChargingPoint{},
		&models.MeterReading{},
		&models.DeviceMessage{},
	))
	return testRepos{
		wallet:   repository.NewWalletRepository(db),
		sessions: repository.NewSessionRepository(db),
		devices:  repository.NewDeviceRepository(db),
		points:   repository.NewChargingPointRepository(db),
	}
}
