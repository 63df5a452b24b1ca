package application

import (
	"context"
	"time"

	"auctioneer/config"
	"auctioneer/domain/interfaces"
	"auctioneer/domain/services"
	"auctioneer/domain/utils"
	"auctioneer/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

const sweepBatchSize = 100

// ReconciliationWorker periodically drives auctions through their scheduled
// transitions: activating due drafts, finalizing expired actives and sending
// ending-soon reminders. Every transition is idempotent, so a sweep that dies
// halfway is simply picked up by the next run.
type ReconciliationWorker struct {
	uowFactory  UnitOfWorkFactory
	emailSender interfaces.EmailSender
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(uowFactory UnitOfWorkFactory, emailSender interfaces.EmailSender) *ReconciliationWorker {
	return &ReconciliationWorker{
		uowFactory:  uowFactory,
		emailSender: emailSender,
	}
}

// Start launches the background sweep and returns a cleanup function to stop
// it gracefully
func (w *ReconciliationWorker) Start(ctx context.Context) func() {
	ticker := time.NewTicker(config.Get().ReconcileInterval)
	stopChan := make(chan struct{})

	go func() {
		log.Info("Reconciliation worker started")

		// Run immediately on startup
		w.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconciliation worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reconciliation worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

// RunOnce performs a single reconciliation sweep
func (w *ReconciliationWorker) RunOnce(ctx context.Context) {
	now := time.Now().UTC()
	w.activateDueAuctions(ctx, now)
	w.finalizeExpiredAuctions(ctx, now)
	w.sendEndingSoonReminders(ctx, now)

	if metrics := observability.GetMetrics(); metrics != nil {
		metrics.RecordReconcileRun()
	}
}

func (w *ReconciliationWorker) activateDueAuctions(ctx context.Context, now time.Time) {
	ids, err := w.findAuctionIDs(ctx, func(uow UnitOfWork) ([]int64, error) {
		return uow.AuctionRepository().FindDueToStart(ctx, now, sweepBatchSize)
	})
	if err != nil {
		log.WithError(err).Error("Failed to list auctions due to start")
		return
	}

	for _, id := range ids {
		uow := w.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			log.WithError(err).WithField("auctionID", id).Error("Failed to begin activation transaction")
			continue
		}

		auctionService := services.NewAuctionService(
			uow.UserRepository(),
			uow.AuctionRepository(),
			uow.BidRepository(),
			uow.OrderRepository(),
			uow.TransactionRepository(),
			uow.EventBus(),
			w.emailSender,
		)
		activated, err := auctionService.ActivateDue(ctx, id, now)
		if err != nil {
			log.WithError(err).WithField("auctionID", id).Error("Failed to activate auction")
			uow.Rollback()
			continue
		}
		if err := uow.Commit(); err != nil {
			log.WithError(err).WithField("auctionID", id).Error("Failed to commit activation")
			continue
		}
		if activated {
			log.WithField("auctionID", id).Info("Auction activated")
		}
	}
}

func (w *ReconciliationWorker) finalizeExpiredAuctions(ctx context.Context, now time.Time) {
	ids, err := w.findAuctionIDs(ctx, func(uow UnitOfWork) ([]int64, error) {
		return uow.AuctionRepository().FindExpired(ctx, now, sweepBatchSize)
	})
	if err != nil {
		log.WithError(err).Error("Failed to list expired auctions")
		return
	}

	for _, id := range ids {
		uow := w.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			log.WithError(err).WithField("auctionID", id).Error("Failed to begin finalization transaction")
			continue
		}

		auctionService := services.NewAuctionService(
			uow.UserRepository(),
			uow.AuctionRepository(),
			uow.BidRepository(),
			uow.OrderRepository(),
			uow.TransactionRepository(),
			uow.EventBus(),
			w.emailSender,
		)
		result, err := auctionService.FinalizeExpired(ctx, id, now)
		if err != nil {
			log.WithError(err).WithField("auctionID", id).Error("Failed to finalize auction")
			uow.Rollback()
			continue
		}
		if err := uow.Commit(); err != nil {
			log.WithError(err).WithField("auctionID", id).Error("Failed to commit finalization")
			continue
		}
		if result.Transitioned {
			log.WithFields(log.Fields{
				"auctionID": id,
				"status":    result.Status,
			}).Info("Auction finalized")
			if metrics := observability.GetMetrics(); metrics != nil {
				metrics.RecordAuctionFinalized(string(result.Status))
			}
		}
	}
}

// endingSoonReminder carries everything needed to send one reminder after its
// notified flag has been committed
type endingSoonReminder struct {
	auctionID   int64
	sellerEmail string
	data        map[string]any
}

func (w *ReconciliationWorker) sendEndingSoonReminders(ctx context.Context, now time.Time) {
	reminders, err := w.collectEndingSoonReminders(ctx, now)
	if err != nil {
		log.WithError(err).Error("Failed to list ending-soon auctions")
		return
	}

	for _, reminder := range reminders {
		// The notified flag commits before the email goes out. A send failure
		// after the commit loses at most one reminder; sending first would
		// repeat the email every sweep whenever the commit fails.
		uow := w.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			log.WithError(err).WithField("auctionID", reminder.auctionID).Error("Failed to begin reminder transaction")
			continue
		}
		if err := uow.AuctionRepository().MarkEndingSoonNotified(ctx, reminder.auctionID); err != nil {
			log.WithError(err).WithField("auctionID", reminder.auctionID).Error("Failed to mark auction notified")
			uow.Rollback()
			continue
		}
		if err := uow.Commit(); err != nil {
			log.WithError(err).WithField("auctionID", reminder.auctionID).Error("Failed to commit reminder flag")
			continue
		}

		if err := w.emailSender.Send(ctx, reminder.sellerEmail, interfaces.EmailTemplateAuctionEndingSoon, reminder.data); err != nil {
			log.WithError(err).WithField("auctionID", reminder.auctionID).Error("Failed to send ending-soon reminder")
		}
	}
}

// collectEndingSoonReminders gathers the pending reminders in a read-only unit
// of work so the per-auction commits above stay small
func (w *ReconciliationWorker) collectEndingSoonReminders(ctx context.Context, now time.Time) ([]endingSoonReminder, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	auctions, err := uow.AuctionRepository().FindEndingSoon(ctx, now, config.Get().EndingSoonWindow)
	if err != nil {
		return nil, err
	}

	reminders := make([]endingSoonReminder, 0, len(auctions))
	for _, auction := range auctions {
		seller, err := uow.UserRepository().GetByID(ctx, auction.SellerID)
		if err != nil || seller == nil {
			log.WithError(err).WithField("auctionID", auction.ID).Error("Failed to load seller for reminder")
			continue
		}
		reminders = append(reminders, endingSoonReminder{
			auctionID:   auction.ID,
			sellerEmail: seller.Email,
			data: map[string]any{
				"auction_id":    auction.ID,
				"auction_title": auction.Title,
				"current_price": utils.FormatAmount(auction.CurrentPrice),
				"end_time":      auction.EndTime.Format(time.RFC3339),
			},
		})
	}
	return reminders, nil
}

// findAuctionIDs runs a read-only query in a throwaway unit of work
func (w *ReconciliationWorker) findAuctionIDs(ctx context.Context, query func(UnitOfWork) ([]int64, error)) ([]int64, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return query(uow)
}
