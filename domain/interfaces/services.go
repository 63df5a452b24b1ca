package interfaces

import (
	"context"
	"time"

	"auctioneer/domain/entities"
	"auctioneer/domain/events"
)

// EventPublisher defines the interface for publishing domain events.
// Delivery is fire-and-forget, at-most-once best effort; failures never roll
// back the business operation that emitted the event.
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the surrounding unit of
// work commits, then flushes them; rollback discards them
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}

// EmailTemplate identifies an outbound email kind; rendering and delivery
// belong to the email collaborator
type EmailTemplate string

const (
	EmailTemplateWithdrawalOtp     EmailTemplate = "withdrawal_otp"
	EmailTemplateWithdrawalStatus  EmailTemplate = "withdrawal_status"
	EmailTemplateAuctionEndingSoon EmailTemplate = "auction_ending_soon"
	EmailTemplateAuctionWon        EmailTemplate = "auction_won"
	EmailTemplateOrderReminder     EmailTemplate = "order_reminder"
)

// EmailSender dispatches an email through the external provider. Failures are
// logged by callers and never abort the triggering business operation.
type EmailSender interface {
	Send(ctx context.Context, toAddress string, template EmailTemplate, data map[string]any) error
}

// PlaceBidResult reports the outcome of a successful bid placement
type PlaceBidResult struct {
	Bid             *entities.Bid
	IncrementalHold int64
	OutbidUserID    *int64 // previous leader whose hold was released, if any
	ReleasedAmount  int64
	EndTimeExtended bool
}

// BidService validates and places bids, manages balance holds and releases
type BidService interface {
	// PlaceBid places a bid for bidderID on auctionID at amount, holding the
	// incremental difference over the bidder's prior holds and releasing the
	// superseded leader's escrow
	PlaceBid(ctx context.Context, bidderID, auctionID, amount int64) (*PlaceBidResult, error)
}

// FinalizeResult reports what an end-of-life transition did. Transitioned is
// false when the auction was already past the attempted transition, which is
// a reported no-op rather than an error.
type FinalizeResult struct {
	Transitioned bool
	Status       entities.AuctionStatus
	WinnerID     *int64
	Order        *entities.Order
}

// AuctionService drives the auction lifecycle state machine
type AuctionService interface {
	// CreateAuction creates a draft auction
	CreateAuction(ctx context.Context, sellerID int64, title, description string, startingPrice, bidIncrement int64, startTime, endTime time.Time) (*entities.Auction, error)

	// PublishAuction explicitly transitions a draft to active
	PublishAuction(ctx context.Context, auctionID, sellerID int64) error

	// ActivateDue transitions a draft whose scheduled start has arrived.
	// Idempotent; called by the reconciliation sweep.
	ActivateDue(ctx context.Context, auctionID int64, now time.Time) (bool, error)

	// FinalizeExpired drives an active auction past its end time to Failed
	// (no bids) or Pending (winner selected, holds of non-winners released,
	// pending payment and order created). Idempotent.
	FinalizeExpired(ctx context.Context, auctionID int64, now time.Time) (*FinalizeResult, error)

	// CancelAuction cancels a pre-terminal auction, releasing every
	// outstanding hold and voiding any pending payment
	CancelAuction(ctx context.Context, auctionID, actorID int64, reason string) error
}

// SettlementService owns post-auction fund movement
type SettlementService interface {
	// MarkShipped records carrier and tracking; seller only, from
	// PendingShipment
	MarkShipped(ctx context.Context, orderID, sellerID int64, carrier, trackingNumber string) error

	// ConfirmReceived completes the order and transfers the escrowed funds
	// to the seller; buyer only, from Shipped. The only path by which
	// escrowed auction funds reach a seller besides ConfirmPayment.
	ConfirmReceived(ctx context.Context, orderID, buyerID int64) error

	// CancelOrder cancels a not-yet-completed order and refunds the buyer.
	// Idempotent against holds already released.
	CancelOrder(ctx context.Context, orderID, actorID int64, reason string) error

	// ConfirmPayment records a party's confirmation on the direct,
	// shipment-free settlement path; when both parties have confirmed the
	// funds transfer exactly as in ConfirmReceived and the order completes
	// without shipping. Rejected once the order has shipped or settled.
	ConfirmPayment(ctx context.Context, auctionID, actorID int64) (*entities.Transaction, error)
}

// VerifyOtpResult reports the outcome of a code check. A wrong code is a
// result, not an error: the attempt counter (and a final auto-cancellation)
// must survive the surrounding unit of work, which only commits on success.
type VerifyOtpResult struct {
	Verified          bool
	RemainingAttempts int
	Cancelled         bool // request auto-cancelled and its hold refunded
}

// WithdrawalService owns the cash-out workflow
type WithdrawalService interface {
	// Create validates caps and sufficiency, holds the amount and issues a
	// one-time code out-of-band
	Create(ctx context.Context, userID int64, bankName, accountNumber string, amount int64) (*entities.WithdrawalRequest, error)

	// VerifyOtp checks the submitted code; too many failures auto-cancel the
	// request and refund the hold
	VerifyOtp(ctx context.Context, requestID, userID int64, code string) (*VerifyOtpResult, error)

	// Approve moves a verified request into processing (operator)
	Approve(ctx context.Context, requestID, operatorID int64) error

	// Reject refunds and terminates a verified request (operator)
	Reject(ctx context.Context, requestID, operatorID int64, reason string) error

	// Complete finishes a processing request; actualAmount must equal the
	// computed final amount (operator)
	Complete(ctx context.Context, requestID, operatorID, actualAmount int64) error

	// Revert returns a prematurely approved request to OtpVerified
	// (operator)
	Revert(ctx context.Context, requestID, operatorID int64) error

	// Cancel lets the requester abandon a pending or verified request,
	// refunding the hold
	Cancel(ctx context.Context, requestID, userID int64) error
}
