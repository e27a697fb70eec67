package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"voltpay/config"
	"voltpay/internal/database"
	"voltpay/internal/queue"
	"voltpay/internal/repository"
	"voltpay/internal/service"
)

const meterQueue = "charger.meter"

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	conn, err := queue.Dial(cfg.Queue.URL, "voltpay_worker", cfg.Queue.Exchange)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}
	defer conn.Close()

	walletRepo := repository.NewWalletRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	events := service.NewEventService(queue.NewPublisher(conn))
	paymentSvc := service.NewPaymentSettlementService(walletRepo, events, cfg.Payment.PendingMatchWindow)
	settlementSvc := service.NewSettlementService(sessionRepo, deviceRepo, walletRepo, events, cfg.Charging.MeterGraceWait)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment settlement runs one message at a time so two deliveries for the
	// same order never race.
	consumers := []*queue.Consumer{
		queue.NewConsumer(conn, cfg.Queue.PaymentQueue, "payment_settlement",
			cfg.Queue.PaymentPrefetch, cfg.Queue.MaxRetries, paymentSvc.Handle),
		queue.NewConsumer(conn, cfg.Queue.StopAckQueue, "session_settlement",
			cfg.Queue.StopAckPrefetch, cfg.Queue.MaxRetries, settlementSvc.HandleStopAck),
		queue.NewConsumer(conn, meterQueue, "meter_values",
			cfg.Queue.StopAckPrefetch, cfg.Queue.MaxRetries, settlementSvc.HandleMeterValue),
	}
	for _, c := range consumers {
		if err := c.Start(ctx); err != nil {
			log.Fatalf("start consumer: %v", err)
		}
	}

	closed := conn.NotifyClose()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-closed:
		// Let the supervisor restart us with a fresh connection.
		log.Fatalf("amqp channel closed: %v", err)
	case <-quit:
	}

	log.Println("shutting down worker...")
	for _, c := range consumers {
		if err := c.Stop(); err != nil {
			log.Printf("stop consumer: %v", err)
		}
	}
	log.Println("worker stopped")
}
