package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"auctioneer/config"
	"auctioneer/domain/entities"
	"auctioneer/domain/interfaces"
	"auctioneer/domain/testhelpers"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubUnitOfWork wraps the repository mocks behind the UnitOfWork interface so
// worker sweeps can run against them without a database
type stubUnitOfWork struct {
	userRepo       *testhelpers.MockUserRepository
	txnRepo        *testhelpers.MockTransactionRepository
	bidRepo        *testhelpers.MockBidRepository
	auctionRepo    *testhelpers.MockAuctionRepository
	orderRepo      *testhelpers.MockOrderRepository
	withdrawalRepo *testhelpers.MockWithdrawalRepository
	publisher      *testhelpers.MockEventPublisher
	commitErr      error
	onCommit       func()
}

func newStubUnitOfWork() *stubUnitOfWork {
	return &stubUnitOfWork{
		userRepo:       new(testhelpers.MockUserRepository),
		txnRepo:        new(testhelpers.MockTransactionRepository),
		bidRepo:        new(testhelpers.MockBidRepository),
		auctionRepo:    new(testhelpers.MockAuctionRepository),
		orderRepo:      new(testhelpers.MockOrderRepository),
		withdrawalRepo: new(testhelpers.MockWithdrawalRepository),
		publisher:      new(testhelpers.MockEventPublisher),
	}
}

func (u *stubUnitOfWork) Begin(ctx context.Context) error { return nil }

func (u *stubUnitOfWork) Commit() error {
	if u.onCommit != nil {
		u.onCommit()
	}
	return u.commitErr
}

func (u *stubUnitOfWork) Rollback() error { return nil }

func (u *stubUnitOfWork) UserRepository() interfaces.UserRepository { return u.userRepo }
func (u *stubUnitOfWork) TransactionRepository() interfaces.TransactionRepository {
	return u.txnRepo
}
func (u *stubUnitOfWork) BidRepository() interfaces.BidRepository         { return u.bidRepo }
func (u *stubUnitOfWork) AuctionRepository() interfaces.AuctionRepository { return u.auctionRepo }
func (u *stubUnitOfWork) OrderRepository() interfaces.OrderRepository     { return u.orderRepo }
func (u *stubUnitOfWork) WithdrawalRepository() interfaces.WithdrawalRepository {
	return u.withdrawalRepo
}
func (u *stubUnitOfWork) EventBus() interfaces.EventPublisher { return u.publisher }

type stubUowFactory struct {
	uow *stubUnitOfWork
}

func (f *stubUowFactory) Create() UnitOfWork { return f.uow }

func endingSoonAuction(id, sellerID int64) *entities.Auction {
	return &entities.Auction{
		ID:           id,
		SellerID:     sellerID,
		Title:        "vintage synthesizer",
		Status:       entities.AuctionStatusActive,
		CurrentPrice: 250000,
		EndTime:      time.Now().UTC().Add(10 * time.Minute),
	}
}

func TestReconciliationWorker_EndingSoonReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("reminder goes out only after the notified flag commits", func(t *testing.T) {
		config.SetTestConfig(config.NewTestConfig())
		uow := newStubUnitOfWork()
		email := new(testhelpers.MockEmailSender)
		worker := NewReconciliationWorker(&stubUowFactory{uow}, email)

		seller := &entities.User{ID: 3, Email: "seller@example.com"}
		uow.auctionRepo.On("FindEndingSoon", ctx, now, mock.AnythingOfType("time.Duration")).
			Return([]*entities.Auction{endingSoonAuction(9, 3)}, nil)
		uow.userRepo.On("GetByID", ctx, int64(3)).Return(seller, nil)

		var sequence []string
		uow.onCommit = func() { sequence = append(sequence, "commit") }
		uow.auctionRepo.On("MarkEndingSoonNotified", ctx, int64(9)).Run(func(mock.Arguments) {
			sequence = append(sequence, "mark")
		}).Return(nil)
		email.On("Send", ctx, "seller@example.com", interfaces.EmailTemplateAuctionEndingSoon, mock.Anything).Run(func(mock.Arguments) {
			sequence = append(sequence, "send")
		}).Return(nil)

		worker.sendEndingSoonReminders(ctx, now)

		require.Equal(t, []string{"mark", "commit", "send"}, sequence)
		email.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("failed commit suppresses the reminder", func(t *testing.T) {
		config.SetTestConfig(config.NewTestConfig())
		uow := newStubUnitOfWork()
		email := new(testhelpers.MockEmailSender)
		worker := NewReconciliationWorker(&stubUowFactory{uow}, email)

		seller := &entities.User{ID: 3, Email: "seller@example.com"}
		uow.auctionRepo.On("FindEndingSoon", ctx, now, mock.AnythingOfType("time.Duration")).
			Return([]*entities.Auction{endingSoonAuction(9, 3)}, nil)
		uow.userRepo.On("GetByID", ctx, int64(3)).Return(seller, nil)
		uow.auctionRepo.On("MarkEndingSoonNotified", ctx, int64(9)).Return(nil)
		uow.commitErr = errors.New("connection reset")

		// A resend on the next sweep is acceptable; a send whose flag never
		// committed would repeat every sweep
		worker.sendEndingSoonReminders(ctx, now)

		email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed send still leaves the auction marked", func(t *testing.T) {
		config.SetTestConfig(config.NewTestConfig())
		uow := newStubUnitOfWork()
		email := new(testhelpers.MockEmailSender)
		worker := NewReconciliationWorker(&stubUowFactory{uow}, email)

		uow.auctionRepo.On("FindEndingSoon", ctx, now, mock.AnythingOfType("time.Duration")).
			Return([]*entities.Auction{endingSoonAuction(9, 3), endingSoonAuction(10, 4)}, nil)
		uow.userRepo.On("GetByID", ctx, int64(3)).Return(&entities.User{ID: 3, Email: "a@example.com"}, nil)
		uow.userRepo.On("GetByID", ctx, int64(4)).Return(&entities.User{ID: 4, Email: "b@example.com"}, nil)
		uow.auctionRepo.On("MarkEndingSoonNotified", ctx, mock.AnythingOfType("int64")).Return(nil)
		email.On("Send", ctx, "a@example.com", interfaces.EmailTemplateAuctionEndingSoon, mock.Anything).
			Return(errors.New("smtp unavailable"))
		email.On("Send", ctx, "b@example.com", interfaces.EmailTemplateAuctionEndingSoon, mock.Anything).
			Return(nil)

		worker.sendEndingSoonReminders(ctx, now)

		uow.auctionRepo.AssertNumberOfCalls(t, "MarkEndingSoonNotified", 2)
		email.AssertNumberOfCalls(t, "Send", 2)
	})
}
