package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// fakeScheduler records scheduling calls instead of arming timers.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
	cancelled []uuid.UUID
}

func (f *fakeScheduler) Schedule(transferID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, transferID)
}

func (f *fakeScheduler) Cancel(transferID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, transferID)
}

func (f *fakeScheduler) Stop() {}

func (f *fakeScheduler) scheduledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		keys = append(keys, m.routingKey)
	}
	return keys
}

type initiateRepoStub struct {
	store.Repository

	user    *domain.User
	wallet  *domain.Wallet
	rules   []domain.ApprovalRule
	roles   []domain.Role
	created *domain.Transfer
}

func (s *initiateRepoStub) FindUserByID(ctx context.Context, bankID uuid.UUID, userID uuid.UUID) (*domain.User, error) {
	if s.user == nil || s.user.ID != userID {
		return nil, store.ErrUserNotFound
	}
	return s.user, nil
}

func (s *initiateRepoStub) FindWalletByID(ctx context.Context, bankID uuid.UUID, walletID uuid.UUID) (*domain.Wallet, error) {
	if s.wallet == nil || s.wallet.ID != walletID {
		return nil, store.ErrWalletNotFound
	}
	return s.wallet, nil
}

func (s *initiateRepoStub) ListApprovalRules(ctx context.Context, bankID uuid.UUID) ([]domain.ApprovalRule, error) {
	return s.rules, nil
}

func (s *initiateRepoStub) ListRoles(ctx context.Context, bankID uuid.UUID) ([]domain.Role, error) {
	return s.roles, nil
}

func (s *initiateRepoStub) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	s.created = transfer
	return nil
}

func newInitiateFixture() (*initiateRepoStub, *fakeScheduler, *recordingPublisher, *Service, uuid.UUID) {
	bankID := uuid.New()
	repo := &initiateRepoStub{
		user:   &domain.User{ID: uuid.New(), BankID: bankID, Username: "ops", RoleName: "operator", Status: domain.UserStatusActive},
		wallet: &domain.Wallet{ID: uuid.New(), BankID: bankID, Name: "treasury", Currency: "USDC", Balance: 100_000_00},
		rules:  defaultApprovalRules(bankID),
		roles:  defaultRoles(bankID),
	}
	scheduler := &fakeScheduler{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, 24*time.Hour, 0, bcrypt.MinCost)
	svc.SetSettlementScheduler(scheduler)
	return repo, scheduler, publisher, svc, bankID
}

func TestInitiateTransfer_AutoApprovesSmallAmount(t *testing.T) {
	repo, scheduler, publisher, svc, bankID := newInitiateFixture()

	result, err := svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
		SourceWalletID:     repo.wallet.ID,
		Amount:             cents(5_000),
		DestinationAddress: "0xabc",
		InitiatedBy:        repo.user.ID,
	})
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	transfer := result.Transfer
	if transfer.Status != domain.TransferStatusProcessing {
		t.Fatalf("expected processing status, got %q", transfer.Status)
	}
	if transfer.ApprovalStatus != domain.ApprovalStatusAutoApproved {
		t.Fatalf("expected auto_approved, got %q", transfer.ApprovalStatus)
	}
	if transfer.RequiredApprovals != 0 {
		t.Fatalf("expected 0 required approvals, got %d", transfer.RequiredApprovals)
	}
	if transfer.ApprovalDeadline != nil {
		t.Fatalf("auto-approved transfer should carry no approval deadline")
	}
	if scheduler.scheduledCount() != 1 {
		t.Fatalf("expected settlement to be scheduled once, got %d", scheduler.scheduledCount())
	}
	if repo.created == nil {
		t.Fatalf("expected transfer to be persisted")
	}

	keys := publisher.routingKeys()
	if len(keys) != 1 || keys[0] != domain.EventTransferInitiated {
		t.Fatalf("expected one %s event, got %v", domain.EventTransferInitiated, keys)
	}
}

func TestInitiateTransfer_LargeAmountEntersApprovalWorkflow(t *testing.T) {
	repo, scheduler, _, svc, bankID := newInitiateFixture()

	result, err := svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
		SourceWalletID:     repo.wallet.ID,
		Amount:             cents(75_000),
		DestinationAddress: "0xabc",
		InitiatedBy:        repo.user.ID,
	})
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	transfer := result.Transfer
	if transfer.Status != domain.TransferStatusPendingApproval {
		t.Fatalf("expected pending_approval status, got %q", transfer.Status)
	}
	if transfer.RequiredApprovals != 2 {
		t.Fatalf("expected 2 required approvals for the large tier, got %d", transfer.RequiredApprovals)
	}
	if transfer.RequiredRoleLevel != 7 {
		t.Fatalf("expected frozen required role level 7, got %d", transfer.RequiredRoleLevel)
	}
	if transfer.RuleName != "large_dual_approval" {
		t.Fatalf("expected frozen rule name, got %q", transfer.RuleName)
	}
	if transfer.ApprovalDeadline == nil {
		t.Fatalf("pending transfer must carry an approval deadline")
	}
	remaining := time.Until(*transfer.ApprovalDeadline)
	if remaining < 23*time.Hour || remaining > 25*time.Hour {
		t.Fatalf("expected deadline roughly one approval window away, got %v", remaining)
	}
	if !strings.Contains(result.NextSteps, "2 approval(s)") {
		t.Fatalf("expected next steps to describe the requirement, got %q", result.NextSteps)
	}
	if scheduler.scheduledCount() != 0 {
		t.Fatalf("settlement must not be scheduled before the threshold is reached")
	}
}

func TestInitiateTransfer_RejectsNonPositiveAmount(t *testing.T) {
	repo, _, _, svc, bankID := newInitiateFixture()

	for _, amount := range []int64{0, -500} {
		_, err := svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
			SourceWalletID: repo.wallet.ID,
			Amount:         amount,
			InitiatedBy:    repo.user.ID,
		})
		if err != ErrInvalidTransferAmount {
			t.Fatalf("expected ErrInvalidTransferAmount for amount %d, got %v", amount, err)
		}
	}
}

func TestInitiateTransfer_RejectsUnknownAndInactiveInitiators(t *testing.T) {
	repo, _, _, svc, bankID := newInitiateFixture()

	_, err := svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
		SourceWalletID: repo.wallet.ID,
		Amount:         cents(100),
		InitiatedBy:    uuid.New(),
	})
	if err != ErrUnauthorizedInitiator {
		t.Fatalf("expected ErrUnauthorizedInitiator for unknown user, got %v", err)
	}

	repo.user.Status = domain.UserStatusInactive
	_, err = svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
		SourceWalletID: repo.wallet.ID,
		Amount:         cents(100),
		InitiatedBy:    repo.user.ID,
	})
	if err != ErrUnauthorizedInitiator {
		t.Fatalf("expected ErrUnauthorizedInitiator for inactive user, got %v", err)
	}
}

type stubRateLimiter struct {
	count      int
	retryAfter int
	err        error
}

func (s *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return s.count, s.retryAfter, s.err
}

func TestInitiateTransfer_RateLimited(t *testing.T) {
	repo, _, _, svc, bankID := newInitiateFixture()
	svc.ConfigureRateLimits(10)
	svc.SetRateLimiter(&stubRateLimiter{count: 11, retryAfter: 42})

	_, err := svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
		SourceWalletID: repo.wallet.ID,
		Amount:         cents(100),
		InitiatedBy:    repo.user.ID,
	})
	rateErr, ok := err.(*RateLimitedError)
	if !ok {
		t.Fatalf("expected *RateLimitedError, got %v", err)
	}
	if rateErr.RetryAfterSeconds != 42 {
		t.Fatalf("expected retry-after 42, got %d", rateErr.RetryAfterSeconds)
	}
}

func TestInitiateTransfer_LimiterFailureDoesNotBlock(t *testing.T) {
	repo, _, _, svc, bankID := newInitiateFixture()
	svc.ConfigureRateLimits(10)
	svc.SetRateLimiter(&stubRateLimiter{err: context.DeadlineExceeded})

	_, err := svc.InitiateTransfer(context.Background(), bankID, domain.InitiateTransferRequest{
		SourceWalletID: repo.wallet.ID,
		Amount:         cents(100),
		InitiatedBy:    repo.user.ID,
	})
	if err != nil {
		t.Fatalf("an unavailable limiter must not block transfers, got %v", err)
	}
}

type statusRepoStub struct {
	store.Repository

	transfer  *domain.Transfer
	approvals []domain.ApprovalRecord
}

func (s *statusRepoStub) FindTransferByID(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID) (*domain.Transfer, error) {
	if s.transfer == nil || s.transfer.ID != transferID {
		return nil, store.ErrTransferNotFound
	}
	return s.transfer, nil
}

func (s *statusRepoStub) ListApprovalsByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.ApprovalRecord, error) {
	return s.approvals, nil
}

func TestGetTransferStatus_Percentage(t *testing.T) {
	tests := []struct {
		name           string
		current        int
		required       int
		wantPercentage int
	}{
		{name: "half way", current: 1, required: 2, wantPercentage: 50},
		{name: "rounds to nearest", current: 2, required: 3, wantPercentage: 67},
		{name: "complete", current: 2, required: 2, wantPercentage: 100},
		{name: "auto approved avoids division by zero", current: 0, required: 0, wantPercentage: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bankID := uuid.New()
			transfer := &domain.Transfer{
				ID:                uuid.New(),
				BankID:            bankID,
				CurrentApprovals:  tt.current,
				RequiredApprovals: tt.required,
				Status:            domain.TransferStatusPendingApproval,
			}
			repo := &statusRepoStub{transfer: transfer}
			svc := NewService(repo, nil, 24*time.Hour, 0, bcrypt.MinCost)
			defer svc.Shutdown()

			status, err := svc.GetTransferStatus(context.Background(), bankID, transfer.ID)
			if err != nil {
				t.Fatalf("GetTransferStatus returned error: %v", err)
			}
			if status.Percentage != tt.wantPercentage {
				t.Fatalf("expected percentage %d, got %d", tt.wantPercentage, status.Percentage)
			}
			if status.Approvals == nil {
				t.Fatalf("approvals must never be nil in the status read model")
			}
		})
	}
}
