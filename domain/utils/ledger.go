package utils

import (
	"context"
	"fmt"

	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// ApplyBalanceChange persists a mutated balance and its paired ledger entry as
// one logical step, then emits a TransactionRecordedEvent. This is the single
// entry point for all balance mutations; callers run it inside a unit of work
// so the two writes commit or roll back together.
func ApplyBalanceChange(
	ctx context.Context,
	userRepo interfaces.UserRepository,
	txnRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
	user *entities.User,
	txn *entities.Transaction,
) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid ledger entry: %w", err)
	}

	if err := userRepo.UpdateBalance(ctx, user.ID, user.Balance); err != nil {
		return fmt.Errorf("failed to update balance for user %d: %w", user.ID, err)
	}

	if err := txnRepo.Record(ctx, txn); err != nil {
		// The surrounding transaction rolls the balance write back; if it
		// cannot, this is the unrecoverable spot and must be alarmed.
		return errs.NewIntegrity(err, "balance updated but ledger entry not recorded for user %d", user.ID)
	}

	event := events.TransactionRecordedEvent{
		UserID:          txn.UserID,
		TransactionType: txn.Type,
		Pool:            txn.Pool,
		Amount:          txn.Amount,
		BalanceBefore:   txn.BalanceBefore,
		BalanceAfter:    txn.BalanceAfter,
		AuctionID:       txn.AuctionID,
	}
	log.WithFields(log.Fields{
		"userID": event.UserID,
		"type":   event.TransactionType,
		"pool":   event.Pool,
		"amount": event.Amount,
	}).Debug("Publishing TransactionRecordedEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish transaction recorded event")
	}

	return nil
}
