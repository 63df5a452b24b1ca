package cmd

import (
	"context"
	"fmt"
	"time"

	"auctioneer/application"
	"auctioneer/config"
	"auctioneer/database"
	"auctioneer/domain/interfaces"
	"auctioneer/infrastructure"
	"auctioneer/infrastructure/observability"
	"auctioneer/repository"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the service
func Run(ctx context.Context) error {
	log.Info("Starting auctioneer...")

	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Metrics are optional; the ledger keeps working if the collector is down
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}

	// Events go through NATS when it is reachable, otherwise they are dropped
	log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
	natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
	var publisherFactory func() interfaces.TransactionalEventPublisher
	if err := natsClient.Connect(ctx); err != nil {
		log.WithError(err).Warn("NATS unavailable, events will be discarded")
		publisherFactory = infrastructure.NewNoopEventPublisher
	} else {
		if err := natsClient.EnsureMarketplaceStream(); err != nil {
			return fmt.Errorf("failed to ensure marketplace stream: %w", err)
		}
		eventPublisher := infrastructure.NewNATSEventPublisher(natsClient)
		publisherFactory = func() interfaces.TransactionalEventPublisher {
			return infrastructure.NewNATSTransactionalPublisher(eventPublisher)
		}
		log.Info("NATS connection established successfully")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, publisherFactory)
	emailSender := infrastructure.NewLogEmailSender(cfg.Environment == "development")

	log.Info("Starting reconciliation worker...")
	worker := application.NewReconciliationWorker(uowFactory, emailSender)
	stopWorker := worker.Start(ctx)

	log.WithField("environment", cfg.Environment).Info("Auctioneer is running...")
	<-ctx.Done()

	log.Info("Shutting down...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down metrics")
	}

	if err := natsClient.Close(); err != nil {
		log.WithError(err).Warn("Error closing NATS connection")
	}

	log.Info("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}
