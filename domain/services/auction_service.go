package services

import (
	"context"
	"fmt"
	"time"

	"auctioneer/config"
	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"
	"auctioneer/domain/utils"

	log "github.com/sirupsen/logrus"
)

type auctionService struct {
	userRepo       interfaces.UserRepository
	auctionRepo    interfaces.AuctionRepository
	bidRepo        interfaces.BidRepository
	orderRepo      interfaces.OrderRepository
	txnRepo        interfaces.TransactionRepository
	eventPublisher interfaces.EventPublisher
	emailSender    interfaces.EmailSender
}

// NewAuctionService creates a new auction lifecycle service
func NewAuctionService(
	userRepo interfaces.UserRepository,
	auctionRepo interfaces.AuctionRepository,
	bidRepo interfaces.BidRepository,
	orderRepo interfaces.OrderRepository,
	txnRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
	emailSender interfaces.EmailSender,
) interfaces.AuctionService {
	return &auctionService{
		userRepo:       userRepo,
		auctionRepo:    auctionRepo,
		bidRepo:        bidRepo,
		orderRepo:      orderRepo,
		txnRepo:        txnRepo,
		eventPublisher: eventPublisher,
		emailSender:    emailSender,
	}
}

// CreateAuction creates a draft auction
func (s *auctionService) CreateAuction(ctx context.Context, sellerID int64, title, description string, startingPrice, bidIncrement int64, startTime, endTime time.Time) (*entities.Auction, error) {
	if title == "" {
		return nil, errs.NewValidation("auction title cannot be empty")
	}
	if startingPrice < 0 {
		return nil, errs.NewValidation("starting price cannot be negative")
	}
	if bidIncrement == 0 {
		bidIncrement = config.Get().DefaultBidIncrement
	}
	if bidIncrement <= 0 {
		return nil, errs.NewValidation("bid increment must be positive")
	}
	if !endTime.After(startTime) {
		return nil, errs.NewValidation("end time must be after start time")
	}

	seller, err := s.userRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	if seller == nil {
		return nil, errs.NewValidation("seller %d not found", sellerID)
	}

	auction := &entities.Auction{
		SellerID:     sellerID,
		Title:        title,
		Description:  description,
		CurrentPrice: startingPrice,
		BidIncrement: bidIncrement,
		StartTime:    startTime,
		EndTime:      endTime,
		Status:       entities.AuctionStatusDraft,
	}
	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return auction, nil
}

// PublishAuction explicitly transitions a draft to active
func (s *auctionService) PublishAuction(ctx context.Context, auctionID, sellerID int64) error {
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return errs.NewValidation("auction %d not found", auctionID)
	}
	if auction.SellerID != sellerID {
		return errs.NewValidation("only the seller can publish an auction")
	}
	if !auction.CanTransitionTo(entities.AuctionStatusActive) {
		return errs.NewConflict("auction cannot be published from status %s", auction.Status)
	}
	return s.activate(ctx, auction)
}

// ActivateDue transitions a draft whose scheduled start has arrived.
// Returns false without error when there is nothing to do.
func (s *auctionService) ActivateDue(ctx context.Context, auctionID int64, now time.Time) (bool, error) {
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, auctionID)
	if err != nil {
		return false, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil || !auction.IsDueToStart(now) {
		return false, nil
	}
	if err := s.activate(ctx, auction); err != nil {
		return false, err
	}
	return true, nil
}

func (s *auctionService) activate(ctx context.Context, auction *entities.Auction) error {
	auction.Status = entities.AuctionStatusActive
	if err := s.auctionRepo.Update(ctx, auction); err != nil {
		return fmt.Errorf("failed to activate auction %d: %w", auction.ID, err)
	}
	if err := s.eventPublisher.Publish(events.AuctionActivatedEvent{
		AuctionID: auction.ID,
		SellerID:  auction.SellerID,
	}); err != nil {
		log.WithError(err).Error("Failed to publish auction activated event")
	}
	return nil
}

// FinalizeExpired drives an active auction past its end time to a settled
// state. Safe to call repeatedly: an auction that already left Active is
// reported as not transitioned.
func (s *auctionService) FinalizeExpired(ctx context.Context, auctionID int64, now time.Time) (*interfaces.FinalizeResult, error) {
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return nil, errs.NewValidation("auction %d not found", auctionID)
	}
	if auction.Status != entities.AuctionStatusActive {
		return &interfaces.FinalizeResult{Transitioned: false, Status: auction.Status, WinnerID: auction.WinnerID}, nil
	}
	if !auction.HasEnded(now) {
		return &interfaces.FinalizeResult{Transitioned: false, Status: auction.Status}, nil
	}

	summary, err := s.bidRepo.GetSummary(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid summary: %w", err)
	}

	if !summary.HasBids() {
		auction.Status = entities.AuctionStatusFailed
		if err := s.auctionRepo.Update(ctx, auction); err != nil {
			return nil, fmt.Errorf("failed to mark auction failed: %w", err)
		}
		s.publishEnded(auction)
		return &interfaces.FinalizeResult{Transitioned: true, Status: entities.AuctionStatusFailed}, nil
	}

	winning := summary.HighestBid
	winnerID := winning.BidderID

	holders, err := s.bidRepo.GetBiddersWithActiveHolds(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active holds: %w", err)
	}

	lockIDs := make([]int64, 0, len(holders)+1)
	lockIDs = append(lockIDs, winnerID)
	for bidderID := range holders {
		if bidderID != winnerID {
			lockIDs = append(lockIDs, bidderID)
		}
	}
	locked, err := lockUsers(ctx, s.userRepo, lockIDs)
	if err != nil {
		return nil, err
	}

	// Release every non-winner's hold before settling on the winner
	for bidderID, held := range holders {
		if bidderID == winnerID {
			continue
		}
		user := locked[bidderID]
		releaseTxn, err := entities.NewReleaseTransaction(bidderID, held, user.Balance.Available, auctionID)
		if err != nil {
			return nil, err
		}
		if err := user.Balance.Release(held); err != nil {
			return nil, err
		}
		if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, user, releaseTxn); err != nil {
			return nil, err
		}
		if err := s.bidRepo.MarkHoldsReleased(ctx, auctionID, bidderID); err != nil {
			return nil, fmt.Errorf("failed to mark holds released for user %d: %w", bidderID, err)
		}
	}

	if err := s.bidRepo.MarkWinning(ctx, winning.ID); err != nil {
		return nil, fmt.Errorf("failed to mark winning bid: %w", err)
	}

	winner := locked[winnerID]
	winnerHeld := holders[winnerID]
	if winnerHeld != winning.HeldAmount {
		return nil, errs.NewIntegrity(nil, "winner escrow %d does not match winning bid hold %d", winnerHeld, winning.HeldAmount)
	}

	// The winner's escrow stays put as a pending payment until both sides of
	// the settlement handshake confirm
	payment, err := entities.NewPendingPaymentTransaction(winnerID, auction.SellerID, winnerHeld, winner.Balance.Escrow, auctionID, winning.ID)
	if err != nil {
		return nil, err
	}
	if err := s.txnRepo.Record(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record pending payment: %w", err)
	}

	order := &entities.Order{
		AuctionID: auctionID,
		BuyerID:   winnerID,
		SellerID:  auction.SellerID,
		Amount:    winnerHeld,
		Status:    entities.OrderStatusPendingShipment,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	finalPrice := winning.Amount
	auction.Status = entities.AuctionStatusPending
	auction.WinnerID = &winnerID
	auction.FinalPrice = &finalPrice
	if err := s.auctionRepo.Update(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}

	s.publishEnded(auction)
	s.notifyWinner(ctx, auction, winner)

	return &interfaces.FinalizeResult{
		Transitioned: true,
		Status:       entities.AuctionStatusPending,
		WinnerID:     &winnerID,
		Order:        order,
	}, nil
}

// CancelAuction cancels a pre-terminal auction, releasing every outstanding
// hold and voiding any pending payment
func (s *auctionService) CancelAuction(ctx context.Context, auctionID, actorID int64, reason string) error {
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return errs.NewValidation("auction %d not found", auctionID)
	}
	if auction.Status.IsTerminal() {
		return errs.NewConflict("auction is already %s", auction.Status)
	}
	if auction.SellerID != actorID {
		return errs.NewValidation("only the seller can cancel an auction")
	}

	holders, err := s.bidRepo.GetBiddersWithActiveHolds(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to get active holds: %w", err)
	}

	if len(holders) > 0 {
		lockIDs := make([]int64, 0, len(holders))
		for bidderID := range holders {
			lockIDs = append(lockIDs, bidderID)
		}
		locked, err := lockUsers(ctx, s.userRepo, lockIDs)
		if err != nil {
			return err
		}
		for bidderID, held := range holders {
			user := locked[bidderID]
			releaseTxn, err := entities.NewReleaseTransaction(bidderID, held, user.Balance.Available, auctionID)
			if err != nil {
				return err
			}
			if err := user.Balance.Release(held); err != nil {
				return err
			}
			if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, user, releaseTxn); err != nil {
				return err
			}
			if err := s.bidRepo.MarkHoldsReleased(ctx, auctionID, bidderID); err != nil {
				return fmt.Errorf("failed to mark holds released for user %d: %w", bidderID, err)
			}
		}
	}

	payment, err := s.txnRepo.GetPendingPaymentByAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to get pending payment: %w", err)
	}
	if payment != nil {
		payment.Status = entities.TransactionStatusCancelled
		if err := s.txnRepo.Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to cancel pending payment: %w", err)
		}
	}

	order, err := s.orderRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if order != nil && !order.IsTerminal() {
		order.Status = entities.OrderStatusCancelled
		order.CancelReason = &reason
		order.CancelledBy = &actorID
		if err := s.orderRepo.Update(ctx, order); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
	}

	auction.Status = entities.AuctionStatusCancelled
	if err := s.auctionRepo.Update(ctx, auction); err != nil {
		return fmt.Errorf("failed to cancel auction: %w", err)
	}

	s.publishEnded(auction)
	return nil
}

func (s *auctionService) publishEnded(auction *entities.Auction) {
	if err := s.eventPublisher.Publish(events.AuctionEndedEvent{
		AuctionID:  auction.ID,
		SellerID:   auction.SellerID,
		Status:     auction.Status,
		WinnerID:   auction.WinnerID,
		FinalPrice: auction.FinalPrice,
	}); err != nil {
		log.WithError(err).Error("Failed to publish auction ended event")
	}
}

func (s *auctionService) notifyWinner(ctx context.Context, auction *entities.Auction, winner *entities.User) {
	data := map[string]any{
		"auction_id":    auction.ID,
		"auction_title": auction.Title,
		"final_price":   utils.FormatAmount(auction.CurrentPrice),
	}
	if err := s.emailSender.Send(ctx, winner.Email, interfaces.EmailTemplateAuctionWon, data); err != nil {
		log.WithError(err).WithField("auctionID", auction.ID).Error("Failed to send auction won email")
	}
}
