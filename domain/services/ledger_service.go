package services

import (
	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
)

// LedgerService contains pure calculation logic shared by the workflows that
// move money. It holds no state and touches no store.
type LedgerService struct{}

// NewLedgerService creates a new LedgerService
func NewLedgerService() *LedgerService {
	return &LedgerService{}
}

// IncrementalHold computes how much additional escrow a bid requires given
// the bidder's existing cumulative hold on the auction. The rule set is
// monotonic, so a negative result means corrupted state and is an error, not
// a credit.
func (s *LedgerService) IncrementalHold(bidAmount, priorHeldAmount int64) (int64, error) {
	delta := bidAmount - priorHeldAmount
	if delta < 0 {
		return 0, errs.NewIntegrity(nil, "prior hold %d exceeds bid amount %d", priorHeldAmount, bidAmount)
	}
	return delta, nil
}

// WithdrawalFee computes the fee and payout for a withdrawal request
func (s *LedgerService) WithdrawalFee(amount, feeBps int64) (fee, finalAmount int64, err error) {
	if amount <= 0 {
		return 0, 0, errs.NewValidation("withdrawal amount must be positive, got %d", amount)
	}
	fee = amount * feeBps / 10000
	finalAmount = amount - fee
	if finalAmount <= 0 {
		return 0, 0, errs.NewValidation("withdrawal amount %d does not cover the fee %d", amount, fee)
	}
	return fee, finalAmount, nil
}

// VerifyConservation checks that a hold/release pair leaves a user's total
// claim unchanged
func (s *LedgerService) VerifyConservation(before, after entities.Balance) error {
	if before.Total() != after.Total() {
		return errs.NewIntegrity(nil, "total claim changed from %d to %d during an internal move",
			before.Total(), after.Total())
	}
	return nil
}
