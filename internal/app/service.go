/**
 * @description
 * This file contains the core business logic for the banking API. The `Service`
 * struct orchestrates bank onboarding, transfer initiation, the approval
 * workflow, and settlement, coordinating between the database repository, the
 * message broker, and the settlement scheduler.
 *
 * Key features:
 * - Implements transfer initiation with rule resolution: auto-approved
 *   transfers go straight to processing, everything else waits for approvals.
 * - Freezes the resolved rule onto the transfer at initiation time.
 * - Publishes lifecycle events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
	"github.com/nisr16/stablecoin-banking-api/pkg/rabbitmq"
)

// EventsExchange is the topic exchange all transfer lifecycle events go to.
const EventsExchange = "banking.events"

var (
	ErrInvalidTransferAmount = errors.New("transfer amount must be greater than zero")
	ErrUnauthorizedInitiator = errors.New("initiator is not an active user of this bank")
	ErrInvalidApprover       = errors.New("approver is not an active user of this bank")
	ErrBankNameRequired      = errors.New("bank name is required")
	ErrUsernameRequired      = errors.New("username is required")
	ErrWalletNameRequired    = errors.New("wallet name is required")
	ErrInvalidAPIKey         = errors.New("invalid api key")
)

// RateLimitedError is returned when a bank exceeds its initiation rate limit.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %d seconds", e.RetryAfterSeconds)
}

// RateLimiter consumes one request from a fixed-window counter and reports the
// resulting count plus the seconds until the window resets.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the banking API.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	settlements   SettlementScheduler

	approvalWindow         time.Duration
	bcryptCost             int
	rateLimiter            RateLimiter
	initiateLimitPerMinute int
}

// NewService creates a new service instance. The settlement scheduler defaults
// to a timer-based one with the given delay; tests may replace it via
// SetSettlementScheduler.
func NewService(repo store.Repository, producer rabbitmq.Publisher, approvalWindow, settlementDelay time.Duration, bcryptCost int) *Service {
	s := &Service{
		repo:           repo,
		eventProducer:  producer,
		approvalWindow: approvalWindow,
		bcryptCost:     bcryptCost,
	}
	s.settlements = NewTimerSettlementScheduler(settlementDelay, s.settleTransfer)
	return s
}

// SetSettlementScheduler replaces the settlement scheduler. Intended for tests
// and for wiring alternative schedulers at bootstrap.
func (s *Service) SetSettlementScheduler(scheduler SettlementScheduler) {
	if s.settlements != nil {
		s.settlements.Stop()
	}
	s.settlements = scheduler
}

// SetRateLimiter installs a distributed rate limiter for transfer initiation.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}

// ConfigureRateLimits sets the per-bank initiation limit per minute. Zero
// disables rate limiting.
func (s *Service) ConfigureRateLimits(initiatePerMinute int) {
	s.initiateLimitPerMinute = initiatePerMinute
}

// Shutdown cancels all scheduled settlement work.
func (s *Service) Shutdown() {
	if s.settlements != nil {
		s.settlements.Stop()
	}
}

// CreateUser creates a bank user whose role must already exist in the same bank.
func (s *Service) CreateUser(ctx context.Context, bankID uuid.UUID, req domain.CreateUserRequest) (*domain.User, error) {
	if req.Username == "" {
		return nil, ErrUsernameRequired
	}
	role, err := s.repo.FindRoleByName(ctx, bankID, req.RoleName)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:       uuid.New(),
		BankID:   bankID,
		Username: req.Username,
		Email:    req.Email,
		RoleName: role.Name,
		Status:   domain.UserStatusActive,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users of a bank.
func (s *Service) ListUsers(ctx context.Context, bankID uuid.UUID) ([]domain.User, error) {
	return s.repo.ListUsers(ctx, bankID)
}

// ListRoles returns a bank's role hierarchy.
func (s *Service) ListRoles(ctx context.Context, bankID uuid.UUID) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx, bankID)
}

// CreateWallet creates a wallet for a bank.
func (s *Service) CreateWallet(ctx context.Context, bankID uuid.UUID, req domain.CreateWalletRequest) (*domain.Wallet, error) {
	if req.Name == "" {
		return nil, ErrWalletNameRequired
	}
	if req.InitialBalance < 0 {
		return nil, ErrInvalidTransferAmount
	}
	currency := req.Currency
	if currency == "" {
		currency = "USDC"
	}

	wallet := &domain.Wallet{
		ID:       uuid.New(),
		BankID:   bankID,
		Name:     req.Name,
		Currency: currency,
		Balance:  req.InitialBalance,
	}
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ListWallets returns all wallets of a bank.
func (s *Service) ListWallets(ctx context.Context, bankID uuid.UUID) ([]domain.Wallet, error) {
	return s.repo.ListWallets(ctx, bankID)
}

// GetWallet returns a single wallet scoped to a bank.
func (s *Service) GetWallet(ctx context.Context, bankID uuid.UUID, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.FindWalletByID(ctx, bankID, walletID)
}

// ListApprovalRules returns a bank's configured rule table.
func (s *Service) ListApprovalRules(ctx context.Context, bankID uuid.UUID) ([]domain.ApprovalRule, error) {
	return s.repo.ListApprovalRules(ctx, bankID)
}

// InitiateTransfer creates a new transfer and routes it either through the
// auto-approval path or into the pending-approval workflow, per the rule
// resolved for its amount. The resolved rule is frozen onto the transfer;
// later rule-table changes never affect it.
func (s *Service) InitiateTransfer(ctx context.Context, bankID uuid.UUID, req domain.InitiateTransferRequest) (*domain.InitiateTransferResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidTransferAmount
	}

	if err := s.consumeInitiateRateLimit(ctx, bankID); err != nil {
		return nil, err
	}

	// The initiator must be an active user of this bank.
	initiator, err := s.repo.FindUserByID(ctx, bankID, req.InitiatedBy)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUnauthorizedInitiator
		}
		return nil, fmt.Errorf("failed to find initiator: %w", err)
	}
	if initiator.Status != domain.UserStatusActive {
		return nil, ErrUnauthorizedInitiator
	}

	wallet, err := s.repo.FindWalletByID(ctx, bankID, req.SourceWalletID)
	if err != nil {
		return nil, fmt.Errorf("failed to find source wallet: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = wallet.Currency
	}

	rule, err := s.resolveRule(ctx, bankID, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approval rule: %w", err)
	}

	transfer := &domain.Transfer{
		ID:                 uuid.New(),
		BankID:             bankID,
		SourceWalletID:     wallet.ID,
		Amount:             req.Amount,
		Currency:           currency,
		DestinationAddress: req.DestinationAddress,
		Description:        req.Description,
		InitiatedBy:        initiator.ID,
		RuleName:           rule.RuleName,
		RequiredRoleLevel:  rule.RequiredRoleLevel,
	}

	var nextSteps string
	if rule.AutoApprove {
		transfer.Status = domain.TransferStatusProcessing
		transfer.ApprovalStatus = domain.ApprovalStatusAutoApproved
		transfer.RequiredApprovals = 0
	} else {
		deadline := time.Now().UTC().Add(s.approvalWindow)
		transfer.Status = domain.TransferStatusPendingApproval
		transfer.ApprovalStatus = domain.ApprovalStatusPending
		transfer.RequiredApprovals = rule.RequiredApprovals
		transfer.ApprovalDeadline = &deadline
		nextSteps = fmt.Sprintf("requires %d approval(s) from users with role level %d or higher", rule.RequiredApprovals, rule.RequiredRoleLevel)
	}

	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create transfer record: %w", err)
	}

	if rule.AutoApprove {
		s.settlements.Schedule(transfer.ID)
	}

	s.emitTransferEvent(ctx, domain.EventTransferInitiated, transfer, "", nil)
	log.Printf("level=info component=app op=initiate_transfer bank_id=%s transfer_id=%s amount=%d status=%s rule=%s",
		bankID, transfer.ID, transfer.Amount, transfer.Status, rule.RuleName)

	return &domain.InitiateTransferResult{Transfer: transfer, NextSteps: nextSteps}, nil
}

// GetTransferStatus returns the approval progress for a transfer. Pure read.
func (s *Service) GetTransferStatus(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID) (*domain.TransferStatusResult, error) {
	transfer, err := s.repo.FindTransferByID(ctx, bankID, transferID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.repo.ListApprovalsByTransferID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if approvals == nil {
		approvals = []domain.ApprovalRecord{}
	}

	// Percentage is defined as 0 for auto-approved transfers, where
	// required_approvals is 0, to avoid a division by zero.
	percentage := 0
	if transfer.RequiredApprovals > 0 {
		percentage = int(float64(transfer.CurrentApprovals)/float64(transfer.RequiredApprovals)*100 + 0.5)
	}

	return &domain.TransferStatusResult{
		TransferID:        transfer.ID,
		Status:            transfer.Status,
		ApprovalStatus:    transfer.ApprovalStatus,
		CurrentApprovals:  transfer.CurrentApprovals,
		RequiredApprovals: transfer.RequiredApprovals,
		Percentage:        percentage,
		Approvals:         approvals,
	}, nil
}

// ListPendingTransfers returns a bank's in-flight transfers, newest first.
func (s *Service) ListPendingTransfers(ctx context.Context, bankID uuid.UUID) ([]domain.Transfer, error) {
	return s.repo.ListPendingTransfers(ctx, bankID)
}

func (s *Service) consumeInitiateRateLimit(ctx context.Context, bankID uuid.UUID) error {
	if s.rateLimiter == nil || s.initiateLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "transfer_initiate", bankID.String(), s.initiateLimitPerMinute, time.Minute)
	if err != nil {
		// The limiter is best-effort; an unavailable Redis never blocks transfers.
		log.Printf("level=warn component=app msg=\"rate limiter unavailable; allowing request\" bank_id=%s err=%v", bankID, err)
		return nil
	}
	if count > s.initiateLimitPerMinute {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// emitTransferEvent publishes a lifecycle event. Failures are logged and
// swallowed; notification delivery never rolls back a workflow decision.
func (s *Service) emitTransferEvent(ctx context.Context, eventType string, transfer *domain.Transfer, reason string, approverID *uuid.UUID) {
	if s.eventProducer == nil {
		return
	}
	event := domain.TransferEvent{
		EventID:           uuid.NewString(),
		EventType:         eventType,
		BankID:            transfer.BankID,
		TransferID:        transfer.ID,
		Status:            transfer.Status,
		ApprovalStatus:    transfer.ApprovalStatus,
		Amount:            transfer.Amount,
		Currency:          transfer.Currency,
		CurrentApprovals:  transfer.CurrentApprovals,
		RequiredApprovals: transfer.RequiredApprovals,
		Reason:            reason,
		ApproverUserID:    approverID,
		OccurredAt:        time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, eventType, event); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" event_type=%s transfer_id=%s err=%v", eventType, transfer.ID, err)
	}
}
