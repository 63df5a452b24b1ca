package services

import (
	"context"
	"fmt"
	"time"

	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"
	"auctioneer/domain/utils"

	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	userRepo       interfaces.UserRepository
	auctionRepo    interfaces.AuctionRepository
	bidRepo        interfaces.BidRepository
	orderRepo      interfaces.OrderRepository
	txnRepo        interfaces.TransactionRepository
	eventPublisher interfaces.EventPublisher
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	userRepo interfaces.UserRepository,
	auctionRepo interfaces.AuctionRepository,
	bidRepo interfaces.BidRepository,
	orderRepo interfaces.OrderRepository,
	txnRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.SettlementService {
	return &settlementService{
		userRepo:       userRepo,
		auctionRepo:    auctionRepo,
		bidRepo:        bidRepo,
		orderRepo:      orderRepo,
		txnRepo:        txnRepo,
		eventPublisher: eventPublisher,
	}
}

// MarkShipped records carrier and tracking details on a pending order
func (s *settlementService) MarkShipped(ctx context.Context, orderID, sellerID int64, carrier, trackingNumber string) error {
	if carrier == "" || trackingNumber == "" {
		return errs.NewValidation("carrier and tracking number are required")
	}

	order, err := s.orderRepo.GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return errs.NewValidation("order %d not found", orderID)
	}
	if order.SellerID != sellerID {
		return errs.NewValidation("only the seller can mark an order shipped")
	}
	if !order.CanShip() {
		return errs.NewConflict("order cannot be shipped from status %s", order.Status)
	}

	now := time.Now().UTC()
	oldStatus := order.Status
	order.Status = entities.OrderStatusShipped
	order.Carrier = &carrier
	order.TrackingNumber = &trackingNumber
	order.ShippedAt = &now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	s.publishOrderStatus(order, oldStatus)
	return nil
}

// ConfirmReceived completes the order and transfers the escrowed funds to the
// seller. Buyer only, from Shipped.
func (s *settlementService) ConfirmReceived(ctx context.Context, orderID, buyerID int64) error {
	order, auction, err := s.lockOrderAndAuction(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != buyerID {
		return errs.NewValidation("only the buyer can confirm receipt")
	}
	if !order.CanConfirmReceipt() {
		return errs.NewConflict("receipt cannot be confirmed from status %s", order.Status)
	}

	payment, err := s.txnRepo.GetPendingPaymentByAuction(ctx, order.AuctionID)
	if err != nil {
		return fmt.Errorf("failed to get pending payment: %w", err)
	}
	if payment == nil {
		return errs.NewIntegrity(nil, "order %d has no pending payment to settle", orderID)
	}

	if err := s.transferFunds(ctx, order.AuctionID, payment, &order.ID); err != nil {
		return err
	}

	now := time.Now().UTC()
	oldStatus := order.Status
	order.Status = entities.OrderStatusCompleted
	order.CompletedAt = &now
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if err := s.completeAuction(ctx, auction); err != nil {
		return err
	}

	s.publishOrderStatus(order, oldStatus)
	return nil
}

// CancelOrder cancels a not-yet-completed order and refunds the buyer. Safe
// against holds already released.
func (s *settlementService) CancelOrder(ctx context.Context, orderID, actorID int64, reason string) error {
	order, auction, err := s.lockOrderAndAuction(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.IsParticipant(actorID) {
		return errs.NewValidation("only the buyer or seller can cancel an order")
	}
	if !order.CanCancel() {
		return errs.NewConflict("order cannot be cancelled from status %s", order.Status)
	}

	held, err := s.bidRepo.GetActiveHoldAmount(ctx, order.AuctionID, order.BuyerID)
	if err != nil {
		return fmt.Errorf("failed to get buyer hold: %w", err)
	}
	if held > 0 {
		locked, err := lockUsers(ctx, s.userRepo, []int64{order.BuyerID})
		if err != nil {
			return err
		}
		buyer := locked[order.BuyerID]
		refundTxn, err := entities.NewRefundTransaction(order.BuyerID, held, buyer.Balance.Available, order.AuctionID, &order.ID)
		if err != nil {
			return err
		}
		if err := buyer.Balance.Release(held); err != nil {
			return err
		}
		if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, buyer, refundTxn); err != nil {
			return err
		}
		if err := s.bidRepo.MarkHoldsReleased(ctx, order.AuctionID, order.BuyerID); err != nil {
			return fmt.Errorf("failed to mark holds released: %w", err)
		}
	}

	payment, err := s.txnRepo.GetPendingPaymentByAuction(ctx, order.AuctionID)
	if err != nil {
		return fmt.Errorf("failed to get pending payment: %w", err)
	}
	if payment != nil {
		payment.Status = entities.TransactionStatusCancelled
		if err := s.txnRepo.Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to cancel pending payment: %w", err)
		}
	}

	oldStatus := order.Status
	order.Status = entities.OrderStatusCancelled
	order.CancelReason = &reason
	order.CancelledBy = &actorID
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if auction.Status == entities.AuctionStatusPending {
		auction.Status = entities.AuctionStatusCancelled
		if err := s.auctionRepo.Update(ctx, auction); err != nil {
			return fmt.Errorf("failed to cancel auction: %w", err)
		}
	}

	s.publishOrderStatus(order, oldStatus)
	return nil
}

// ConfirmPayment records one party's confirmation on the direct settlement
// path, for sales the parties settle without shipment tracking. Available
// until the order ships; once both parties have confirmed, the funds transfer
// exactly as on receipt confirmation and the order completes alongside the
// auction.
func (s *settlementService) ConfirmPayment(ctx context.Context, auctionID, actorID int64) (*entities.Transaction, error) {
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock auction: %w", err)
	}
	if auction == nil {
		return nil, errs.NewValidation("auction %d not found", auctionID)
	}

	order, err := s.orderRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for order: %w", err)
	}
	if order != nil {
		order, err = s.orderRepo.GetByIDForUpdate(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock order: %w", err)
		}
		if order.Status != entities.OrderStatusPendingShipment {
			return nil, errs.NewConflict("auction %d settles through its %s order, not direct confirmation", auctionID, order.Status)
		}
	}

	payment, err := s.txnRepo.GetPendingPaymentByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payment: %w", err)
	}
	if payment == nil {
		return nil, errs.NewValidation("auction %d has no pending payment", auctionID)
	}
	if !payment.IsPending() {
		return nil, errs.NewConflict("payment is already %s", payment.Status)
	}

	switch actorID {
	case payment.UserID:
		payment.BuyerConfirmed = true
	case derefInt64(payment.CounterpartyID):
		payment.SellerConfirmed = true
	default:
		return nil, errs.NewValidation("user %d is not a party to this payment", actorID)
	}

	if !payment.BothPartiesConfirmed() {
		if err := s.txnRepo.Update(ctx, payment); err != nil {
			return nil, fmt.Errorf("failed to record confirmation: %w", err)
		}
		return payment, nil
	}

	var orderID *int64
	if order != nil {
		orderID = &order.ID
	}
	if err := s.transferFunds(ctx, auctionID, payment, orderID); err != nil {
		return nil, err
	}

	if order != nil {
		now := time.Now().UTC()
		oldStatus := order.Status
		order.Status = entities.OrderStatusCompleted
		order.CompletedAt = &now
		if err := s.orderRepo.Update(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
		s.publishOrderStatus(order, oldStatus)
	}

	if err := s.completeAuction(ctx, auction); err != nil {
		return nil, err
	}
	return payment, nil
}

// transferFunds performs the one true escrow-to-seller movement: debits the
// buyer's escrow, flips the pending payment to completed with corrected
// snapshots, and credits the seller with a linked entry.
func (s *settlementService) transferFunds(ctx context.Context, auctionID int64, payment *entities.Transaction, orderID *int64) error {
	buyerID := payment.UserID
	sellerID := derefInt64(payment.CounterpartyID)
	amount := -payment.Amount

	locked, err := lockUsers(ctx, s.userRepo, []int64{buyerID, sellerID})
	if err != nil {
		return err
	}
	buyer := locked[buyerID]
	seller := locked[sellerID]

	if buyer.Balance.Escrow < amount {
		return errs.NewIntegrity(nil, "buyer escrow %d cannot cover payment of %d", buyer.Balance.Escrow, amount)
	}

	payment.Status = entities.TransactionStatusCompleted
	payment.BalanceBefore = buyer.Balance.Escrow
	payment.BalanceAfter = buyer.Balance.Escrow - amount
	payment.OrderID = orderID
	if err := buyer.Balance.DebitEscrow(amount); err != nil {
		return err
	}
	if err := s.userRepo.UpdateBalance(ctx, buyerID, buyer.Balance); err != nil {
		return fmt.Errorf("failed to update buyer balance: %w", err)
	}
	if err := s.txnRepo.Update(ctx, payment); err != nil {
		return errs.NewIntegrity(err, "buyer balance updated but payment entry not completed")
	}

	creditTxn, err := entities.NewPaymentCreditTransaction(sellerID, buyerID, amount, seller.Balance.Available, &auctionID, orderID)
	if err != nil {
		return err
	}
	if err := seller.Balance.Credit(amount); err != nil {
		return err
	}
	if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, seller, creditTxn); err != nil {
		return err
	}

	if err := s.bidRepo.MarkHoldsReleased(ctx, auctionID, buyerID); err != nil {
		return fmt.Errorf("failed to mark winner holds settled: %w", err)
	}

	if err := s.eventPublisher.Publish(events.TransactionRecordedEvent{
		UserID:          buyerID,
		TransactionType: payment.Type,
		Pool:            payment.Pool,
		Amount:          payment.Amount,
		BalanceBefore:   payment.BalanceBefore,
		BalanceAfter:    payment.BalanceAfter,
		AuctionID:       payment.AuctionID,
	}); err != nil {
		log.WithError(err).Error("Failed to publish payment completed event")
	}
	return nil
}

// lockOrderAndAuction acquires the auction row lock before the order row lock.
// Every path that touches an auction's rows locks auction first, then order,
// then user rows in ascending ID order, so concurrent settlement and
// cancellation cannot deadlock.
func (s *settlementService) lockOrderAndAuction(ctx context.Context, orderID int64) (*entities.Order, *entities.Auction, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil, errs.NewValidation("order %d not found", orderID)
	}

	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, order.AuctionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock auction: %w", err)
	}
	if auction == nil {
		return nil, nil, errs.NewIntegrity(nil, "order %d references missing auction %d", orderID, order.AuctionID)
	}

	// Re-read under the auction lock; the unlocked read only located the auction
	order, err = s.orderRepo.GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order == nil {
		return nil, nil, errs.NewValidation("order %d not found", orderID)
	}
	return order, auction, nil
}

func (s *settlementService) completeAuction(ctx context.Context, auction *entities.Auction) error {
	if !auction.CanTransitionTo(entities.AuctionStatusCompleted) {
		return errs.NewConflict("auction cannot complete from status %s", auction.Status)
	}
	auction.Status = entities.AuctionStatusCompleted
	if err := s.auctionRepo.Update(ctx, auction); err != nil {
		return fmt.Errorf("failed to complete auction: %w", err)
	}
	return nil
}

func (s *settlementService) publishOrderStatus(order *entities.Order, oldStatus entities.OrderStatus) {
	if err := s.eventPublisher.Publish(events.OrderStatusChangedEvent{
		OrderID:   order.ID,
		AuctionID: order.AuctionID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
	}); err != nil {
		log.WithError(err).Error("Failed to publish order status event")
	}
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
