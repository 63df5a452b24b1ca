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
	"golang.org/x/crypto/bcrypt"
)

func createTestWithdrawalService() (*withdrawalService, *testhelpers.MockUserRepository, *testhelpers.MockWithdrawalRepository, *testhelpers.MockTransactionRepository, *testhelpers.MockEventPublisher, *testhelpers.MockEmailSender) {
	config.SetTestConfig(config.NewTestConfig())

	mockUserRepo := new(testhelpers.MockUserRepository)
	mockWithdrawalRepo := new(testhelpers.MockWithdrawalRepository)
	mockTxnRepo := new(testhelpers.MockTransactionRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)
	mockEmail := new(testhelpers.MockEmailSender)

	service := NewWithdrawalService(mockUserRepo, mockWithdrawalRepo, mockTxnRepo, mockPublisher, mockEmail).(*withdrawalService)
	return service, mockUserRepo, mockWithdrawalRepo, mockTxnRepo, mockPublisher, mockEmail
}

func verifiableRequest(t *testing.T, id, userID int64, code string, status entities.WithdrawalStatus) *entities.WithdrawalRequest {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	hashStr := string(hash)
	expires := time.Now().UTC().Add(10 * time.Minute)
	return &entities.WithdrawalRequest{
		ID:           id,
		UserID:       userID,
		BankName:     "First National",
		AccountLast4: "6789",
		Amount:       100000,
		Fee:          1000,
		FinalAmount:  99000,
		Status:       status,
		OtpHash:      &hashStr,
		OtpExpiresAt: &expires,
	}
}

func TestWithdrawalService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("holds the amount and emails a code", func(t *testing.T) {
		service, userRepo, withdrawalRepo, txnRepo, publisher, email := createTestWithdrawalService()

		user := testUser(2, 500000, 0)
		withdrawalRepo.On("CountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(0, nil)
		withdrawalRepo.On("SumAmountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(int64(0), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(user, nil)
		withdrawalRepo.On("Create", ctx, mock.AnythingOfType("*entities.WithdrawalRequest")).Return(nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)
		email.On("Send", mock.Anything, "user@example.com", mock.Anything, mock.Anything).Return(nil)

		request, err := service.Create(ctx, 2, "First National", "100200306789", 100000)
		require.NoError(t, err)

		// 1% fee at the default 100 bps
		assert.Equal(t, int64(1000), request.Fee)
		assert.Equal(t, int64(99000), request.FinalAmount)
		assert.Equal(t, "6789", request.AccountLast4)
		assert.Equal(t, entities.WithdrawalStatusPending, request.Status)
		assert.NotNil(t, request.OtpHash)

		assert.Equal(t, int64(400000), user.Balance.Available)
		assert.Equal(t, int64(100000), user.Balance.PendingWithdrawal)
		email.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("below the minimum is rejected", func(t *testing.T) {
		service, _, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		_, err := service.Create(ctx, 2, "First National", "100200306789", 5000)
		require.Error(t, err)
		var verr *errs.ValidationError
		assert.ErrorAs(t, err, &verr)
		withdrawalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("daily request count cap", func(t *testing.T) {
		service, userRepo, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(testUser(2, 500000, 0), nil)
		withdrawalRepo.On("CountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(3, nil)

		_, err := service.Create(ctx, 2, "First National", "100200306789", 100000)
		require.Error(t, err)
		var cerr *errs.ConflictError
		assert.ErrorAs(t, err, &cerr)
		withdrawalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("daily amount cap counts the new request", func(t *testing.T) {
		service, userRepo, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(testUser(2, 500000, 0), nil)
		withdrawalRepo.On("CountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(1, nil)
		withdrawalRepo.On("SumAmountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(int64(9950000), nil)

		_, err := service.Create(ctx, 2, "First National", "100200306789", 100000)
		require.Error(t, err)
		var cerr *errs.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("daily caps are evaluated under the balance lock", func(t *testing.T) {
		service, userRepo, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		// Two concurrent requests serialize on the user row; checking the
		// caps before the lock would let both pass
		var callSequence []string
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Run(func(mock.Arguments) {
			callSequence = append(callSequence, "lock")
		}).Return(testUser(2, 500000, 0), nil)
		withdrawalRepo.On("CountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Run(func(mock.Arguments) {
			callSequence = append(callSequence, "count")
		}).Return(3, nil)

		_, err := service.Create(ctx, 2, "First National", "100200306789", 100000)
		require.Error(t, err)
		require.Equal(t, []string{"lock", "count"}, callSequence)
	})

	t.Run("insufficient available balance", func(t *testing.T) {
		service, userRepo, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		user := testUser(2, 50000, 0)
		withdrawalRepo.On("CountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(0, nil)
		withdrawalRepo.On("SumAmountByUserSince", ctx, int64(2), mock.AnythingOfType("time.Time")).Return(int64(0), nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(user, nil)

		_, err := service.Create(ctx, 2, "First National", "100200306789", 100000)
		require.Error(t, err)
		var insufficientErr *errs.InsufficientFundsError
		assert.ErrorAs(t, err, &insufficientErr)
		withdrawalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestWithdrawalService_VerifyOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code verifies and clears the hash", func(t *testing.T) {
		service, _, withdrawalRepo, _, publisher, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusPending)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.VerifyOtp(ctx, 7, 2, "123456")
		require.NoError(t, err)

		assert.True(t, result.Verified)
		assert.Equal(t, entities.WithdrawalStatusOtpVerified, request.Status)
		assert.Nil(t, request.OtpHash)
	})

	t.Run("wrong code persists the attempt and commits", func(t *testing.T) {
		service, _, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusPending)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)

		// A nil error is load-bearing: callers commit the unit of work only
		// on success, and the attempt counter must survive the transaction
		result, err := service.VerifyOtp(ctx, 7, 2, "654321")
		require.NoError(t, err)

		assert.False(t, result.Verified)
		assert.Equal(t, 4, result.RemainingAttempts)
		assert.Equal(t, 1, request.OtpAttempts)
		assert.Equal(t, entities.WithdrawalStatusPending, request.Status)
		withdrawalRepo.AssertCalled(t, "Update", ctx, request)
	})

	t.Run("final wrong attempt cancels the request and refunds the hold", func(t *testing.T) {
		service, userRepo, withdrawalRepo, txnRepo, publisher, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusPending)
		request.OtpAttempts = 4
		user := testUser(2, 400000, 0)
		user.Balance.PendingWithdrawal = 100000

		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(user, nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		result, err := service.VerifyOtp(ctx, 7, 2, "654321")
		require.NoError(t, err)

		assert.True(t, result.Cancelled)
		assert.False(t, result.Verified)
		assert.Equal(t, entities.WithdrawalStatusCancelled, request.Status)
		assert.Equal(t, int64(500000), user.Balance.Available)
		assert.Equal(t, int64(0), user.Balance.PendingWithdrawal)
	})

	t.Run("expired code is a conflict", func(t *testing.T) {
		service, _, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusPending)
		expired := time.Now().UTC().Add(-time.Minute)
		request.OtpExpiresAt = &expired

		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)

		_, err := service.VerifyOtp(ctx, 7, 2, "123456")
		require.Error(t, err)
		var cerr *errs.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("someone else's request reads as not found", func(t *testing.T) {
		service, _, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusPending)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)

		_, err := service.VerifyOtp(ctx, 7, 3, "123456")
		require.Error(t, err)
		var verr *errs.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestWithdrawalService_OperatorWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("approve moves a verified request into processing", func(t *testing.T) {
		service, userRepo, withdrawalRepo, _, publisher, email := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusOtpVerified)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		userRepo.On("GetByID", mock.Anything, int64(2)).Return(testUser(2, 0, 0), nil)
		publisher.On("Publish", mock.Anything).Return(nil)
		email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		err := service.Approve(ctx, 7, 42)
		require.NoError(t, err)

		assert.Equal(t, entities.WithdrawalStatusProcessing, request.Status)
		require.NotNil(t, request.ApprovedBy)
		assert.Equal(t, int64(42), *request.ApprovedBy)
	})

	t.Run("processing request cannot be rejected before revert", func(t *testing.T) {
		service, _, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusProcessing)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)

		err := service.Reject(ctx, 7, 42, "bank details mismatch")
		require.Error(t, err)
		var cerr *errs.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("reject refunds the hold", func(t *testing.T) {
		service, userRepo, withdrawalRepo, txnRepo, publisher, email := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusOtpVerified)
		user := testUser(2, 400000, 0)
		user.Balance.PendingWithdrawal = 100000

		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(user, nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		userRepo.On("GetByID", mock.Anything, int64(2)).Return(user, nil)
		publisher.On("Publish", mock.Anything).Return(nil)
		email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		err := service.Reject(ctx, 7, 42, "bank details mismatch")
		require.NoError(t, err)

		assert.Equal(t, entities.WithdrawalStatusRejected, request.Status)
		assert.Equal(t, int64(500000), user.Balance.Available)
		assert.Equal(t, int64(0), user.Balance.PendingWithdrawal)
		require.NotNil(t, request.RejectedBy)
		assert.Equal(t, int64(42), *request.RejectedBy)
	})

	t.Run("complete pays out the full held amount", func(t *testing.T) {
		service, userRepo, withdrawalRepo, txnRepo, publisher, email := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusProcessing)
		user := testUser(2, 400000, 0)
		user.Balance.PendingWithdrawal = 100000

		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(user, nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		userRepo.On("GetByID", mock.Anything, int64(2)).Return(user, nil)
		publisher.On("Publish", mock.Anything).Return(nil)
		email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		err := service.Complete(ctx, 7, 42, 99000)
		require.NoError(t, err)

		// The fee stays with the platform: the whole hold leaves the pool and
		// nothing returns to available
		assert.Equal(t, entities.WithdrawalStatusCompleted, request.Status)
		assert.Equal(t, int64(400000), user.Balance.Available)
		assert.Equal(t, int64(0), user.Balance.PendingWithdrawal)
	})

	t.Run("complete rejects a mismatched payout amount", func(t *testing.T) {
		service, userRepo, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusProcessing)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)

		err := service.Complete(ctx, 7, 42, 100000)
		require.Error(t, err)
		var verr *errs.ValidationError
		assert.ErrorAs(t, err, &verr)
		userRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("revert returns a processing request to verified", func(t *testing.T) {
		service, _, withdrawalRepo, _, publisher, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusProcessing)
		operatorID := int64(42)
		request.ApprovedBy = &operatorID

		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		err := service.Revert(ctx, 7, 42)
		require.NoError(t, err)

		assert.Equal(t, entities.WithdrawalStatusOtpVerified, request.Status)
		assert.Nil(t, request.ApprovedBy)
	})
}

func TestWithdrawalService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("requester cancels a pending request", func(t *testing.T) {
		service, userRepo, withdrawalRepo, txnRepo, publisher, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusPending)
		user := testUser(2, 400000, 0)
		user.Balance.PendingWithdrawal = 100000

		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(2)).Return(user, nil)
		userRepo.On("UpdateBalance", ctx, int64(2), mock.AnythingOfType("entities.Balance")).Return(nil)
		txnRepo.On("Record", ctx, mock.AnythingOfType("*entities.Transaction")).Return(nil)
		withdrawalRepo.On("Update", ctx, request).Return(nil)
		publisher.On("Publish", mock.Anything).Return(nil)

		err := service.Cancel(ctx, 7, 2)
		require.NoError(t, err)

		assert.Equal(t, entities.WithdrawalStatusCancelled, request.Status)
		assert.Equal(t, int64(500000), user.Balance.Available)
	})

	t.Run("processing request cannot be cancelled by the requester", func(t *testing.T) {
		service, _, withdrawalRepo, _, _, _ := createTestWithdrawalService()

		request := verifiableRequest(t, 7, 2, "123456", entities.WithdrawalStatusProcessing)
		withdrawalRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(request, nil)

		err := service.Cancel(ctx, 7, 2)
		require.Error(t, err)
		var cerr *errs.ConflictError
		assert.ErrorAs(t, err, &cerr)
	})
}

func TestGenerateOtpCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := generateOtpCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}
