package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"auctioneer/cmd"
	"auctioneer/config"
	"auctioneer/database"
	"auctioneer/domain/entities"
	"auctioneer/domain/utils"
	"auctioneer/infrastructure"
	"auctioneer/repository"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	// Admin subcommands
	if len(os.Args) > 1 && os.Args[1] == "create-user" {
		if err := handleCreateUser(); err != nil {
			log.Fatal("Create user error: ", err)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "adjust-balance" {
		if err := handleBalanceAdjustment(); err != nil {
			log.Fatal("Balance adjustment error: ", err)
		}
		return
	}

	// Normal service operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: auctioneer migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleCreateUser() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: auctioneer create-user username email [initial-balance]")
	}
	username := os.Args[2]
	email := os.Args[3]

	cfg := config.Get()
	initialBalance := cfg.StartingBalance
	if len(os.Args) > 4 {
		parsed, err := strconv.ParseInt(os.Args[4], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid initial balance: %w", err)
		}
		initialBalance = parsed
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	user, err := repository.NewUserRepository(db).Create(ctx, username, email, initialBalance)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":   user.ID,
		"username": user.Username,
		"balance":  utils.FormatAmount(user.Balance.Available),
	}).Info("User created")
	return nil
}

// handleBalanceAdjustment credits or debits a user's available balance and
// records the adjustment in the ledger
func handleBalanceAdjustment() error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: auctioneer adjust-balance user-id amount reason")
	}
	userID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}
	amount, err := strconv.ParseInt(os.Args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	reason := os.Args[4]

	ctx := context.Background()
	cfg := config.Get()
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Admin adjustments bypass NATS; the ledger entry is the audit trail
	uowFactory := repository.NewUnitOfWorkFactory(db, infrastructure.NewNoopEventPublisher)
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}

	txn, err := entities.NewAdminAdjustmentTransaction(userID, amount, user.Balance.Available, reason)
	if err != nil {
		return fmt.Errorf("invalid adjustment: %w", err)
	}
	if user.Balance.Available+amount < 0 {
		return fmt.Errorf("adjustment of %d would overdraw available balance %d", amount, user.Balance.Available)
	}
	user.Balance.Available += amount

	if err := utils.ApplyBalanceChange(ctx, uow.UserRepository(), uow.TransactionRepository(), uow.EventBus(), user, txn); err != nil {
		return fmt.Errorf("failed to apply adjustment: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit adjustment: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"amount":    utils.FormatAmount(amount),
		"available": utils.FormatAmount(user.Balance.Available),
	}).Info("Balance adjusted")
	return nil
}
