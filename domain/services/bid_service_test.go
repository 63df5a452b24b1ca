package services

import (
	"context"
	"testing"
	"time"

	"auctioneer/config"
	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
	"auctioneer/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Test utilities

func createTestBidService() (*bidService, *testhelpers.MockUserRepository, *testhelpers.MockBidRepository, *testhelpers.MockAuctionRepository, *testhelpers.MockTransactionRepository, *testhelpers.MockEventPublisher) {
	config.SetTestConfig(config.NewTestConfig())

	mockUserRepo := new(testhelpers.MockUserRepository)
	mockBidRepo := new(testhelpers.MockBidRepository)
	mockAuctionRepo := new(testhelpers.MockAuctionRepository)
	mockTxnRepo := new(testhelpers.MockTransactionRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	service := NewBidService(mockUserRepo, mockBidRepo, mockAuctionRepo, mockTxnRepo, mockPublisher).(*bidService)
	return service, mockUserRepo, mockBidRepo, mockAuctionRepo, mockTxnRepo, mockPublisher
}

func activeAuction(id, sellerID, currentPrice int64) *entities.Auction {
	now := time.Now().UTC()
	return &entities.Auction{
		ID:           id,
		SellerID:     sellerID,
		Title:        "vintage synthesizer",
		CurrentPrice: currentPrice,
		BidIncrement: 10000,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Status:       entities.AuctionStatusActive,
	}
}

func testUser(id, available, escrow int64) *entities.User {
	return &entities.User{
		ID:       id,
		Username: "user",
		Email:    "user@example.com",
		Balance:  entities.Balance{Available: available, Escrow: escrow},
	}
}

// Tests

func TestBidService_PlaceBid(t *testing.T) {
	ctx := context.Background()

	t.Run("first bid holds the full amount", func(t *testing.T) {
		service, userRepo, bidRepo, auctionRepo, txnRepo, publisher := createTestBidService()

		auction := activeAuction(1, 99, 100000)
		bidder := testUser(2, 500000, 0)

		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)
		bidRepo.On("GetSummary", ctx, int64(1)).Return(&entities.AuctionBidSummary{AuctionID: 1}, nil)
		bidRepo.On("GetActiveHoldAmount", ctx, int64(1), int64(2)).Return(int64(0), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(bidder, nil)
		bidRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bid")).Return(nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		auctionRepo.On("Update", ctx, auction).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.PlaceBid(ctx, 2, 1, 110000)
		require.NoError(t, err)

		assert.Equal(t, int64(110000), result.IncrementalHold)
		assert.Nil(t, result.OutbidUserID)
		assert.Equal(t, int64(110000), result.Bid.HeldAmount)
		assert.Equal(t, int64(390000), bidder.Balance.Available)
		assert.Equal(t, int64(110000), bidder.Balance.Escrow)
		assert.Equal(t, int64(110000), auction.CurrentPrice)
	})

	t.Run("outbid releases the previous leader's entire hold", func(t *testing.T) {
		service, userRepo, bidRepo, auctionRepo, txnRepo, publisher := createTestBidService()

		// User 1 leads at 110000 with that amount escrowed; user 2 bids 130000
		auction := activeAuction(1, 99, 110000)
		leader := testUser(1, 390000, 110000)
		challenger := testUser(2, 500000, 0)
		leaderBid := &entities.Bid{ID: 10, AuctionID: 1, BidderID: 1, Amount: 110000, HeldAmount: 110000}

		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)
		bidRepo.On("GetSummary", ctx, int64(1)).Return(&entities.AuctionBidSummary{
			AuctionID: 1, HighestBid: leaderBid, BidCount: 1, TotalEscrowed: 110000,
		}, nil)
		bidRepo.On("GetActiveHoldAmount", ctx, int64(1), int64(2)).Return(int64(0), nil)
		bidRepo.On("GetActiveHoldAmount", ctx, int64(1), int64(1)).Return(int64(110000), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(leader, nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(challenger, nil)
		bidRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bid")).Return(nil)
		userRepo.On("UpdateBalance", ctx, mock.AnythingOfType("int64"), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		auctionRepo.On("Update", ctx, auction).Return(nil)
		bidRepo.On("MarkHoldsReleased", ctx, int64(1), int64(1)).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.PlaceBid(ctx, 2, 1, 130000)
		require.NoError(t, err)

		require.NotNil(t, result.OutbidUserID)
		assert.Equal(t, int64(1), *result.OutbidUserID)
		assert.Equal(t, int64(110000), result.ReleasedAmount)

		// Challenger's funds moved to escrow, leader made whole
		assert.Equal(t, int64(370000), challenger.Balance.Available)
		assert.Equal(t, int64(130000), challenger.Balance.Escrow)
		assert.Equal(t, int64(500000), leader.Balance.Available)
		assert.Equal(t, int64(0), leader.Balance.Escrow)

		// Conservation across both users
		assert.Equal(t, int64(1000000), challenger.Balance.Total()+leader.Balance.Total())

		bidRepo.AssertCalled(t, "MarkHoldsReleased", ctx, int64(1), int64(1))
	})

	t.Run("below minimum bid is rejected without side effects", func(t *testing.T) {
		service, userRepo, bidRepo, auctionRepo, _, _ := createTestBidService()

		auction := activeAuction(1, 99, 100000)
		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)

		_, err := service.PlaceBid(ctx, 2, 1, 105000)
		require.Error(t, err)
		var verr *errs.ValidationError
		assert.ErrorAs(t, err, &verr)

		userRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
		bidRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("raising own bid holds only the difference", func(t *testing.T) {
		service, userRepo, bidRepo, auctionRepo, txnRepo, publisher := createTestBidService()

		auction := activeAuction(1, 99, 110000)
		bidder := testUser(2, 390000, 110000)
		ownBid := &entities.Bid{ID: 10, AuctionID: 1, BidderID: 2, Amount: 110000, HeldAmount: 110000}

		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)
		bidRepo.On("GetSummary", ctx, int64(1)).Return(&entities.AuctionBidSummary{
			AuctionID: 1, HighestBid: ownBid, BidCount: 1, TotalEscrowed: 110000,
		}, nil)
		bidRepo.On("GetActiveHoldAmount", ctx, int64(1), int64(2)).Return(int64(110000), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(bidder, nil)
		bidRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bid")).Return(nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		auctionRepo.On("Update", ctx, auction).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.PlaceBid(ctx, 2, 1, 130000)
		require.NoError(t, err)

		assert.Equal(t, int64(20000), result.IncrementalHold)
		assert.Nil(t, result.OutbidUserID)
		assert.Equal(t, int64(130000), result.Bid.HeldAmount)
		assert.Equal(t, int64(370000), bidder.Balance.Available)
		assert.Equal(t, int64(130000), bidder.Balance.Escrow)

		bidRepo.AssertNotCalled(t, "MarkHoldsReleased", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insufficient available balance", func(t *testing.T) {
		service, userRepo, bidRepo, auctionRepo, _, _ := createTestBidService()

		auction := activeAuction(1, 99, 100000)
		bidder := testUser(2, 50000, 0)

		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)
		bidRepo.On("GetSummary", ctx, int64(1)).Return(&entities.AuctionBidSummary{AuctionID: 1}, nil)
		bidRepo.On("GetActiveHoldAmount", ctx, int64(1), int64(2)).Return(int64(0), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(bidder, nil)

		_, err := service.PlaceBid(ctx, 2, 1, 110000)
		require.Error(t, err)
		var insufficientErr *errs.InsufficientFundsError
		require.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, int64(110000), insufficientErr.Required)
		assert.Equal(t, int64(50000), insufficientErr.Available)

		bidRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("seller cannot bid on own auction", func(t *testing.T) {
		service, _, _, auctionRepo, _, _ := createTestBidService()

		auction := activeAuction(1, 99, 100000)
		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)

		_, err := service.PlaceBid(ctx, 99, 1, 110000)
		require.Error(t, err)
		var verr *errs.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("bid on a non-active auction is rejected", func(t *testing.T) {
		service, _, _, auctionRepo, _, _ := createTestBidService()

		auction := activeAuction(1, 99, 100000)
		auction.Status = entities.AuctionStatusDraft
		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)

		_, err := service.PlaceBid(ctx, 2, 1, 110000)
		require.Error(t, err)
		var cerr *errs.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("bid inside the anti-snipe window extends the end time", func(t *testing.T) {
		service, userRepo, bidRepo, auctionRepo, txnRepo, publisher := createTestBidService()

		auction := activeAuction(1, 99, 100000)
		auction.EndTime = time.Now().UTC().Add(10 * time.Second)
		originalEnd := auction.EndTime
		bidder := testUser(2, 500000, 0)

		auctionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(auction, nil)
		bidRepo.On("GetSummary", ctx, int64(1)).Return(&entities.AuctionBidSummary{AuctionID: 1}, nil)
		bidRepo.On("GetActiveHoldAmount", ctx, int64(1), int64(2)).Return(int64(0), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(bidder, nil)
		bidRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bid")).Return(nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		auctionRepo.On("Update", ctx, auction).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.PlaceBid(ctx, 2, 1, 110000)
		require.NoError(t, err)

		assert.True(t, result.EndTimeExtended)
		assert.Equal(t, originalEnd.Add(2*time.Minute), auction.EndTime)
	})
}
