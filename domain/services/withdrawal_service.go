package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"auctioneer/config"
	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"
	"auctioneer/domain/utils"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type withdrawalService struct {
	userRepo       interfaces.UserRepository
	withdrawalRepo interfaces.WithdrawalRepository
	txnRepo        interfaces.TransactionRepository
	eventPublisher interfaces.EventPublisher
	emailSender    interfaces.EmailSender
	ledger         *LedgerService
}

// NewWithdrawalService creates a new withdrawal workflow service
func NewWithdrawalService(
	userRepo interfaces.UserRepository,
	withdrawalRepo interfaces.WithdrawalRepository,
	txnRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
	emailSender interfaces.EmailSender,
) interfaces.WithdrawalService {
	return &withdrawalService{
		userRepo:       userRepo,
		withdrawalRepo: withdrawalRepo,
		txnRepo:        txnRepo,
		eventPublisher: eventPublisher,
		emailSender:    emailSender,
		ledger:         NewLedgerService(),
	}
}

// Create validates limits, holds the amount and issues a one-time code
func (s *withdrawalService) Create(ctx context.Context, userID int64, bankName, accountNumber string, amount int64) (*entities.WithdrawalRequest, error) {
	cfg := config.Get()
	now := time.Now().UTC()

	if bankName == "" {
		return nil, errs.NewValidation("bank name is required")
	}
	if len(accountNumber) < 4 {
		return nil, errs.NewValidation("account number is too short")
	}
	if amount < cfg.WithdrawalMinAmount {
		return nil, errs.NewValidation("withdrawal of %s is below the minimum of %s",
			utils.FormatAmount(amount), utils.FormatAmount(cfg.WithdrawalMinAmount))
	}

	fee, finalAmount, err := s.ledger.WithdrawalFee(amount, cfg.WithdrawalFeeBps)
	if err != nil {
		return nil, err
	}

	// The balance lock comes first: concurrent requests from the same user
	// serialize on the user row, so the cap queries below see each other's
	// committed rows instead of racing past the limits
	locked, err := lockUsers(ctx, s.userRepo, []int64{userID})
	if err != nil {
		return nil, err
	}
	user := locked[userID]

	windowStart := now.Add(-24 * time.Hour)
	count, err := s.withdrawalRepo.CountByUserSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent withdrawals: %w", err)
	}
	if count >= cfg.WithdrawalDailyMaxCount {
		return nil, errs.NewConflict("daily withdrawal limit of %d requests reached", cfg.WithdrawalDailyMaxCount)
	}
	sum, err := s.withdrawalRepo.SumAmountByUserSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to sum recent withdrawals: %w", err)
	}
	if sum+amount > cfg.WithdrawalDailyMaxAmount {
		return nil, errs.NewConflict("withdrawal would exceed the daily limit of %s",
			utils.FormatAmount(cfg.WithdrawalDailyMaxAmount))
	}

	if !user.CanAfford(amount) {
		return nil, errs.NewInsufficientFunds(amount, user.Balance.Available)
	}

	code, err := generateOtpCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate one-time code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash one-time code: %w", err)
	}
	hashStr := string(hash)
	expiresAt := now.Add(cfg.OtpTTL)

	request := &entities.WithdrawalRequest{
		Reference:    uuid.New(),
		UserID:       userID,
		BankName:     bankName,
		AccountLast4: accountNumber[len(accountNumber)-4:],
		Amount:       amount,
		Fee:          fee,
		FinalAmount:  finalAmount,
		Status:       entities.WithdrawalStatusPending,
		OtpHash:      &hashStr,
		OtpExpiresAt: &expiresAt,
	}
	if err := s.withdrawalRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	holdTxn, err := entities.NewWithdrawalHoldTransaction(userID, amount, user.Balance.Available, request.ID)
	if err != nil {
		return nil, err
	}
	if err := user.Balance.HoldForWithdrawal(amount); err != nil {
		return nil, err
	}
	if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, user, holdTxn); err != nil {
		return nil, err
	}

	s.sendOtpEmail(ctx, user, request, code)
	return request, nil
}

// VerifyOtp checks the submitted code. A wrong code is reported in the result
// rather than as an error so the surrounding unit of work commits the attempt
// counter; repeated failures auto-cancel the request and refund the hold.
func (s *withdrawalService) VerifyOtp(ctx context.Context, requestID, userID int64, code string) (*interfaces.VerifyOtpResult, error) {
	cfg := config.Get()
	now := time.Now().UTC()

	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil || request.UserID != userID {
		return nil, errs.NewValidation("withdrawal request %d not found", requestID)
	}
	if !request.CanVerifyOtp() {
		return nil, errs.NewConflict("request is %s and no longer accepts a code", request.Status)
	}
	if request.OtpExpired(now) {
		return nil, errs.NewConflict("one-time code has expired")
	}
	if request.OtpHash == nil {
		return nil, errs.NewIntegrity(nil, "pending withdrawal %d has no stored code hash", requestID)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*request.OtpHash), []byte(code)); err != nil {
		request.OtpAttempts++
		if request.OtpAttempts >= cfg.OtpMaxAttempts {
			if err := s.refundAndTransition(ctx, request, entities.WithdrawalStatusCancelled); err != nil {
				return nil, err
			}
			return &interfaces.VerifyOtpResult{Cancelled: true}, nil
		}
		if err := s.withdrawalRepo.Update(ctx, request); err != nil {
			return nil, fmt.Errorf("failed to record failed attempt: %w", err)
		}
		return &interfaces.VerifyOtpResult{RemainingAttempts: cfg.OtpMaxAttempts - request.OtpAttempts}, nil
	}

	oldStatus := request.Status
	request.OtpHash = nil
	request.Status = entities.WithdrawalStatusOtpVerified
	if err := s.withdrawalRepo.Update(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	s.publishStatusChange(request, oldStatus)
	return &interfaces.VerifyOtpResult{Verified: true}, nil
}

// Approve moves a verified request into processing
func (s *withdrawalService) Approve(ctx context.Context, requestID, operatorID int64) error {
	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil {
		return errs.NewValidation("withdrawal request %d not found", requestID)
	}
	if request.Status != entities.WithdrawalStatusOtpVerified {
		return errs.NewConflict("request cannot be approved from status %s", request.Status)
	}

	oldStatus := request.Status
	request.Status = entities.WithdrawalStatusProcessing
	request.ApprovedBy = &operatorID
	if err := s.withdrawalRepo.Update(ctx, request); err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	s.publishStatusChange(request, oldStatus)
	s.sendStatusEmail(ctx, request)
	return nil
}

// Reject refunds and terminates a verified request. A request already in
// processing must be reverted first.
func (s *withdrawalService) Reject(ctx context.Context, requestID, operatorID int64, reason string) error {
	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil {
		return errs.NewValidation("withdrawal request %d not found", requestID)
	}
	if !request.CanBeRejected() {
		return errs.NewConflict("request cannot be rejected from status %s", request.Status)
	}

	request.RejectedBy = &operatorID
	request.RejectReason = &reason
	if err := s.refundAndTransition(ctx, request, entities.WithdrawalStatusRejected); err != nil {
		return err
	}
	s.sendStatusEmail(ctx, request)
	return nil
}

// Complete finishes a processing request. The amount actually paid out must
// match the computed final amount exactly.
func (s *withdrawalService) Complete(ctx context.Context, requestID, operatorID, actualAmount int64) error {
	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil {
		return errs.NewValidation("withdrawal request %d not found", requestID)
	}
	if request.Status != entities.WithdrawalStatusProcessing {
		return errs.NewConflict("request cannot be completed from status %s", request.Status)
	}
	if actualAmount != request.FinalAmount {
		return errs.NewValidation("paid amount %s does not match the expected payout of %s",
			utils.FormatAmount(actualAmount), utils.FormatAmount(request.FinalAmount))
	}

	locked, err := lockUsers(ctx, s.userRepo, []int64{request.UserID})
	if err != nil {
		return err
	}
	user := locked[request.UserID]

	// The full held amount leaves the pool; the fee is platform revenue and is
	// never credited back to the user
	withdrawTxn, err := entities.NewWithdrawTransaction(request.UserID, request.Amount, user.Balance.PendingWithdrawal, request.ID)
	if err != nil {
		return err
	}
	if err := user.Balance.CompleteWithdrawal(request.Amount); err != nil {
		return err
	}
	if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, user, withdrawTxn); err != nil {
		return err
	}

	oldStatus := request.Status
	request.Status = entities.WithdrawalStatusCompleted
	request.CompletedBy = &operatorID
	if err := s.withdrawalRepo.Update(ctx, request); err != nil {
		return errs.NewIntegrity(err, "withdrawal paid out but request not marked completed")
	}
	s.publishStatusChange(request, oldStatus)
	s.sendStatusEmail(ctx, request)
	return nil
}

// Revert returns a prematurely approved request to the verified state so it
// can be rejected or re-approved
func (s *withdrawalService) Revert(ctx context.Context, requestID, operatorID int64) error {
	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil {
		return errs.NewValidation("withdrawal request %d not found", requestID)
	}
	if request.Status != entities.WithdrawalStatusProcessing {
		return errs.NewConflict("request cannot be reverted from status %s", request.Status)
	}

	oldStatus := request.Status
	request.Status = entities.WithdrawalStatusOtpVerified
	request.ApprovedBy = nil
	if err := s.withdrawalRepo.Update(ctx, request); err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	s.publishStatusChange(request, oldStatus)
	return nil
}

// Cancel lets the requester abandon a pending or verified request
func (s *withdrawalService) Cancel(ctx context.Context, requestID, userID int64) error {
	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if request == nil || request.UserID != userID {
		return errs.NewValidation("withdrawal request %d not found", requestID)
	}
	if !request.CanBeCancelledBy(userID) {
		return errs.NewConflict("request cannot be cancelled from status %s", request.Status)
	}
	return s.refundAndTransition(ctx, request, entities.WithdrawalStatusCancelled)
}

// refundAndTransition releases the withdrawal hold back to available and moves
// the request to a terminal refunded state in one step
func (s *withdrawalService) refundAndTransition(ctx context.Context, request *entities.WithdrawalRequest, terminal entities.WithdrawalStatus) error {
	locked, err := lockUsers(ctx, s.userRepo, []int64{request.UserID})
	if err != nil {
		return err
	}
	user := locked[request.UserID]

	releaseTxn, err := entities.NewWithdrawalReleaseTransaction(request.UserID, request.Amount, user.Balance.Available, request.ID)
	if err != nil {
		return err
	}
	if err := user.Balance.ReleaseWithdrawalHold(request.Amount); err != nil {
		return err
	}
	if err := utils.ApplyBalanceChange(ctx, s.userRepo, s.txnRepo, s.eventPublisher, user, releaseTxn); err != nil {
		return err
	}

	oldStatus := request.Status
	request.Status = terminal
	if err := s.withdrawalRepo.Update(ctx, request); err != nil {
		return errs.NewIntegrity(err, "withdrawal hold refunded but request not transitioned")
	}
	s.publishStatusChange(request, oldStatus)
	return nil
}

func (s *withdrawalService) publishStatusChange(request *entities.WithdrawalRequest, oldStatus entities.WithdrawalStatus) {
	if err := s.eventPublisher.Publish(events.WithdrawalStatusChangedEvent{
		WithdrawalID: request.ID,
		UserID:       request.UserID,
		OldStatus:    oldStatus,
		NewStatus:    request.Status,
		Amount:       request.Amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish withdrawal status event")
	}
}

func (s *withdrawalService) sendOtpEmail(ctx context.Context, user *entities.User, request *entities.WithdrawalRequest, code string) {
	data := map[string]any{
		"reference":    request.Reference.String(),
		"code":         code,
		"amount":       utils.FormatAmount(request.Amount),
		"final_amount": utils.FormatAmount(request.FinalAmount),
		"expires_at":   request.OtpExpiresAt.Format(time.RFC3339),
	}
	if err := s.emailSender.Send(ctx, user.Email, interfaces.EmailTemplateWithdrawalOtp, data); err != nil {
		log.WithError(err).WithField("withdrawalID", request.ID).Error("Failed to send withdrawal code email")
	}
}

func (s *withdrawalService) sendStatusEmail(ctx context.Context, request *entities.WithdrawalRequest) {
	user, err := s.userRepo.GetByID(context.WithoutCancel(ctx), request.UserID)
	if err != nil || user == nil {
		log.WithError(err).WithField("userID", request.UserID).Error("Failed to load user for status email")
		return
	}
	data := map[string]any{
		"reference": request.Reference.String(),
		"status":    string(request.Status),
		"amount":    utils.FormatAmount(request.Amount),
	}
	if err := s.emailSender.Send(ctx, user.Email, interfaces.EmailTemplateWithdrawalStatus, data); err != nil {
		log.WithError(err).WithField("withdrawalID", request.ID).Error("Failed to send withdrawal status email")
	}
}

// generateOtpCode produces a 6-digit numeric code from crypto/rand
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
