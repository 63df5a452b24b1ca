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

type bidService struct {
	userRepo       interfaces.UserRepository
	bidRepo        interfaces.BidRepository
	auctionRepo    interfaces.AuctionRepository
	txnRepo        interfaces.TransactionRepository
	eventPublisher interfaces.EventPublisher
	ledger         *LedgerService
}

// NewBidService creates a new bid service. All repositories must come from
// the same unit of work so placement, holds and releases commit atomically.
func NewBidService(
	userRepo interfaces.UserRepository,
	bidRepo interfaces.BidRepository,
	auctionRepo interfaces.AuctionRepository,
	txnRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.BidService {
	return &bidService{
		userRepo:       userRepo,
		bidRepo:        bidRepo,
		auctionRepo:    auctionRepo,
		txnRepo:        txnRepo,
		eventPublisher: eventPublisher,
		ledger:         NewLedgerService(),
	}
}

// PlaceBid validates and places a bid, holding the incremental difference and
// releasing the superseded leader's escrow in the same atomic step
func (s *bidService) PlaceBid(ctx context.Context, bidderID, auctionID, amount int64) (*interfaces.PlaceBidResult, error) {
	now := time.Now().UTC()
	cfg := config.Get()

	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return nil, errs.NewValidation("auction %d not found", auctionID)
	}
	if !auction.IsActive() {
		return nil, errs.NewConflict("auction is not open for bidding (status %s)", auction.Status)
	}
	if auction.HasEnded(now) {
		return nil, errs.NewConflict("auction has already ended")
	}
	if auction.SellerID == bidderID {
		return nil, errs.NewValidation("sellers cannot bid on their own auction")
	}
	if amount < auction.MinimumNextBid() {
		return nil, errs.NewValidation("bid of %s is below the minimum of %s",
			utils.FormatAmount(amount), utils.FormatAmount(auction.MinimumNextBid()))
	}

	// Snapshot the current leader before the new bid lands
	summary, err := s.bidRepo.GetSummary(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid summary: %w", err)
	}

	priorHeld, err := s.bidRepo.GetActiveHoldAmount(ctx, auctionID, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prior hold: %w", err)
	}
	incrementalHold, err := s.ledger.IncrementalHold(amount, priorHeld)
	if err != nil {
		return nil, err
	}

	var previousLeaderID *int64
	if summary.HighestBid != nil && summary.HighestBid.BidderID != bidderID {
		previousLeaderID = &summary.HighestBid.BidderID
	}

	// Lock affected balances in ascending user-ID order to avoid deadlock
	lockIDs := []int64{bidderID}
	if previousLeaderID != nil {
		lockIDs = append(lockIDs, *previousLeaderID)
	}
	locked, err := lockUsers(ctx, s.userRepo, lockIDs)
	if err != nil {
		return nil, err
	}

	bidder := locked[bidderID]
	if !bidder.CanAfford(incrementalHold) {
		return nil, errs.NewInsufficientFunds(incrementalHold, bidder.Balance.Available)
	}

	bid := &entities.Bid{
		AuctionID:  auctionID,
		BidderID:   bidderID,
		Amount:     amount,
		HeldAmount: priorHeld + incrementalHold,
		CreatedAt:  now,
	}
	if err := s.bidRepo.Create(ctx, bid); err != nil {
		return nil, fmt.Errorf("failed to create bid: %w", err)
	}

	holdTxn, err := entities.NewHoldTransaction(bidderID, incrementalHold, bidder.Balance.Available, auctionID, bid.ID)
	if err != nil {
		return nil, err
	}
	if err := bidder.Balance.Hold(incrementalHold); err != nil {
		return nil, err
	}
	if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, bidder, holdTxn); err != nil {
		return nil, err
	}

	auction.CurrentPrice = amount
	extended := false
	if auction.InAntiSnipeWindow(now, cfg.AntiSnipeWindow) {
		auction.EndTime = auction.EndTime.Add(cfg.AntiSnipeExtension)
		extended = true
	}
	if err := s.auctionRepo.Update(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}

	result := &interfaces.PlaceBidResult{
		Bid:             bid,
		IncrementalHold: incrementalHold,
		EndTimeExtended: extended,
	}

	// Release the superseded leader's entire hold on this auction
	if previousLeaderID != nil {
		released, err := s.releaseHold(ctx, auctionID, locked[*previousLeaderID])
		if err != nil {
			return nil, err
		}
		result.OutbidUserID = previousLeaderID
		result.ReleasedAmount = released

		if err := s.eventPublisher.Publish(events.OutbidEvent{
			AuctionID:      auctionID,
			OutbidUserID:   *previousLeaderID,
			NewLeaderID:    bidderID,
			NewPrice:       amount,
			ReleasedAmount: released,
		}); err != nil {
			log.WithError(err).Error("Failed to publish outbid event")
		}
	}

	if err := s.eventPublisher.Publish(events.AuctionPriceChangedEvent{
		AuctionID: auctionID,
		NewPrice:  amount,
		BidderID:  bidderID,
		EndTime:   auction.EndTime.Unix(),
	}); err != nil {
		log.WithError(err).Error("Failed to publish price change event")
	}

	return result, nil
}

// releaseHold moves a bidder's full unreleased hold on an auction from escrow
// back to available and marks the rows released. No-op if nothing is held.
func (s *bidService) releaseHold(ctx context.Context, auctionID int64, user *entities.User) (int64, error) {
	held, err := s.bidRepo.GetActiveHoldAmount(ctx, auctionID, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to get hold for user %d: %w", user.ID, err)
	}
	if held == 0 {
		return 0, nil
	}

	releaseTxn, err := entities.NewReleaseTransaction(user.ID, held, user.Balance.Available, auctionID)
	if err != nil {
		return 0, err
	}
	if err := user.Balance.Release(held); err != nil {
		return 0, err
	}
	if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, user, releaseTxn); err != nil {
		return 0, err
	}
	if err := s.bidRepo.MarkHoldsReleased(ctx, auctionID, user.ID); err != nil {
		return 0, fmt.Errorf("failed to mark holds released for user %d: %w", user.ID, err)
	}
	return held, nil
}
