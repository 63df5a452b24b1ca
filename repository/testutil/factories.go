package testutil

import (
	"time"

	"auctioneer/domain/entities"

	"github.com/google/uuid"
)

// CreateTestAuction creates an active test auction with sensible defaults
func CreateTestAuction(sellerID int64, title string) *entities.Auction {
	now := time.Now().UTC()
	return &entities.Auction{
		SellerID:     sellerID,
		Title:        title,
		Description:  "test listing",
		CurrentPrice: 100000,
		BidIncrement: 10000,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Status:       entities.AuctionStatusActive,
	}
}

// CreateTestDraftAuction creates a draft auction with the given time window
func CreateTestDraftAuction(sellerID int64, title string, startTime, endTime time.Time) *entities.Auction {
	auction := CreateTestAuction(sellerID, title)
	auction.Status = entities.AuctionStatusDraft
	auction.StartTime = startTime
	auction.EndTime = endTime
	return auction
}

// CreateTestBid creates a test bid holding its full amount
func CreateTestBid(auctionID, bidderID, amount int64) *entities.Bid {
	return &entities.Bid{
		AuctionID:  auctionID,
		BidderID:   bidderID,
		Amount:     amount,
		HeldAmount: amount,
	}
}

// CreateTestOrder creates a pending-shipment test order
func CreateTestOrder(auctionID, buyerID, sellerID, amount int64) *entities.Order {
	return &entities.Order{
		AuctionID: auctionID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Amount:    amount,
		Status:    entities.OrderStatusPendingShipment,
	}
}

// CreateTestWithdrawalRequest creates a pending withdrawal request. The fee
// uses the default platform rate of 1%.
func CreateTestWithdrawalRequest(userID, amount int64) *entities.WithdrawalRequest {
	fee := amount / 100
	hash := "$2a$04$notarealhashnotarealhashnotarealhashnotarealhashnotar"
	expires := time.Now().UTC().Add(10 * time.Minute)
	return &entities.WithdrawalRequest{
		Reference:    uuid.New(),
		UserID:       userID,
		BankName:     "Test Bank",
		AccountLast4: "6789",
		Amount:       amount,
		Fee:          fee,
		FinalAmount:  amount - fee,
		Status:       entities.WithdrawalStatusPending,
		OtpHash:      &hash,
		OtpExpiresAt: &expires,
	}
}
