package application

import (
	"context"

	"auctioneer/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations.
// Every ledger-affecting workflow runs entirely inside one unit of work so a
// balance write, its ledger entry and any related state change commit or roll
// back together.
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes buffered events
	Commit() error

	// Rollback rolls back the transaction and discards buffered events
	Rollback() error

	// Repository getters
	UserRepository() interfaces.UserRepository
	TransactionRepository() interfaces.TransactionRepository
	BidRepository() interfaces.BidRepository
	AuctionRepository() interfaces.AuctionRepository
	OrderRepository() interfaces.OrderRepository
	WithdrawalRepository() interfaces.WithdrawalRepository

	// EventBus returns the publisher that buffers events until commit
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
