package router

import (
	"time"

	"voltpay/config"
	"voltpay/internal/charger"
	"voltpay/internal/handler"
	"voltpay/internal/middleware"
	"voltpay/internal/queue"
	"voltpay/internal/repository"
	"voltpay/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, conn *queue.Connection, bridge charger.CommandSender) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	walletRepo := repository.NewWalletRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	pointRepo := repository.NewChargingPointRepository(db)

	// Services
	publisher := queue.NewPublisher(conn)
	events := service.NewEventService(publisher)
	guard := service.NewRemoteCommandGuard(deviceRepo, cfg.Charging.GuardLookback, cfg.Charging.GuardCooldown)
	chargingSvc := service.NewChargingService(
		sessionRepo, deviceRepo, pointRepo, walletRepo,
		guard, bridge, events, publisher,
		cfg.Queue.StopAckQueue, cfg.Charging.HoldPaise, cfg.Bridge.CommandTimeout,
	)

	// Handlers
	walletHandler := handler.NewWalletHandler(walletRepo)
	chargingHandler := handler.NewChargingHandler(chargingSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(publisher, cfg.Queue.PaymentQueue, &cfg.Payment)

	api := r.Group("/api/v1")
	{
		api.POST("/webhooks/payment", webhookHandler.Handle)

		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/transactions", walletHandler.ListTransactions)
			wallet.POST("/topup", walletHandler.CreateTopup)
		}

		charging := api.Group("/charging")
		{
			charging.POST("/start", chargingHandler.Start)
			charging.POST("/stop", chargingHandler.Stop)
		}
	}
	return r
}
