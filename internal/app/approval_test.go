package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type approvalRepoStub struct {
	store.Repository

	approver    *domain.User
	role        *domain.Role
	transfer    *domain.Transfer
	hasApproval bool
	progress    *domain.ApprovalProgress
	recordErr   error

	recordCalled bool
}

func (s *approvalRepoStub) FindUserByID(ctx context.Context, bankID uuid.UUID, userID uuid.UUID) (*domain.User, error) {
	if s.approver == nil || s.approver.ID != userID {
		return nil, store.ErrUserNotFound
	}
	return s.approver, nil
}

func (s *approvalRepoStub) FindTransferByID(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID) (*domain.Transfer, error) {
	if s.transfer == nil || s.transfer.ID != transferID {
		return nil, store.ErrTransferNotFound
	}
	return s.transfer, nil
}

func (s *approvalRepoStub) HasApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID) (bool, error) {
	return s.hasApproval, nil
}

func (s *approvalRepoStub) FindRoleByName(ctx context.Context, bankID uuid.UUID, name string) (*domain.Role, error) {
	if s.role == nil || s.role.Name != name {
		return nil, store.ErrRoleNotFound
	}
	return s.role, nil
}

func (s *approvalRepoStub) RecordApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID, comments string) (*domain.ApprovalProgress, error) {
	s.recordCalled = true
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return s.progress, nil
}

func newApprovalFixture() (*approvalRepoStub, *fakeScheduler, *recordingPublisher, *Service, uuid.UUID) {
	bankID := uuid.New()
	repo := &approvalRepoStub{
		approver: &domain.User{ID: uuid.New(), BankID: bankID, Username: "manager1", RoleName: "manager", Status: domain.UserStatusActive},
		role:     &domain.Role{ID: uuid.New(), BankID: bankID, Name: "manager", Level: 7, CanApproveTransfers: true},
		transfer: &domain.Transfer{
			ID:                uuid.New(),
			BankID:            bankID,
			Amount:            cents(75_000),
			Status:            domain.TransferStatusPendingApproval,
			ApprovalStatus:    domain.ApprovalStatusPending,
			RequiredApprovals: 2,
			RequiredRoleLevel: 7,
		},
		progress: &domain.ApprovalProgress{
			CurrentApprovals:  1,
			RequiredApprovals: 2,
			Status:            domain.TransferStatusPendingApproval,
			ApprovalStatus:    domain.ApprovalStatusPending,
		},
	}
	scheduler := &fakeScheduler{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, 24*time.Hour, 0, bcrypt.MinCost)
	svc.SetSettlementScheduler(scheduler)
	return repo, scheduler, publisher, svc, bankID
}

func TestApproveTransfer_RejectsUnknownApprover(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()

	_, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: uuid.New()})
	if err != ErrInvalidApprover {
		t.Fatalf("expected ErrInvalidApprover, got %v", err)
	}
	if repo.recordCalled {
		t.Fatalf("no approval may be recorded for an unknown approver")
	}
}

func TestApproveTransfer_RejectsInactiveApprover(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()
	repo.approver.Status = domain.UserStatusInactive

	_, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	if err != ErrInvalidApprover {
		t.Fatalf("expected ErrInvalidApprover, got %v", err)
	}
}

func TestApproveTransfer_RejectsMissingTransfer(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()

	_, err := svc.ApproveTransfer(context.Background(), bankID, uuid.New(), domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	if !errors.Is(err, store.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestApproveTransfer_RejectsCompletedTransfer(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()
	repo.transfer.Status = domain.TransferStatusCompleted

	_, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	if !errors.Is(err, store.ErrTransferCompleted) {
		t.Fatalf("expected ErrTransferCompleted, got %v", err)
	}
	if repo.recordCalled {
		t.Fatalf("completed transfers must not accept approvals")
	}
}

func TestApproveTransfer_RejectsAutoApprovedTransfer(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()
	repo.transfer.Status = domain.TransferStatusProcessing
	repo.transfer.ApprovalStatus = domain.ApprovalStatusAutoApproved

	_, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	if !errors.Is(err, store.ErrNoApprovalNeeded) {
		t.Fatalf("expected ErrNoApprovalNeeded, got %v", err)
	}
}

func TestApproveTransfer_RejectsDuplicateApprover(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()
	repo.hasApproval = true

	_, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	if !errors.Is(err, store.ErrDuplicateApproval) {
		t.Fatalf("expected ErrDuplicateApproval, got %v", err)
	}
	if repo.recordCalled {
		t.Fatalf("a duplicate approval must not reach the ledger")
	}
}

func TestApproveTransfer_RejectsInsufficientRoleLevel(t *testing.T) {
	repo, _, _, svc, bankID := newApprovalFixture()
	repo.role.Level = 3

	_, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	var levelErr *InsufficientRoleLevelError
	if !errors.As(err, &levelErr) {
		t.Fatalf("expected *InsufficientRoleLevelError, got %v", err)
	}
	if levelErr.RequiredLevel != 7 || levelErr.ActualLevel != 3 {
		t.Fatalf("expected required=7 actual=3, got required=%d actual=%d", levelErr.RequiredLevel, levelErr.ActualLevel)
	}
	if repo.recordCalled {
		t.Fatalf("an under-levelled approval must not reach the ledger")
	}
}

func TestApproveTransfer_BelowThresholdDoesNotScheduleSettlement(t *testing.T) {
	repo, scheduler, publisher, svc, bankID := newApprovalFixture()

	progress, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID, Comments: "looks good"})
	if err != nil {
		t.Fatalf("ApproveTransfer returned error: %v", err)
	}
	if progress.CurrentApprovals != 1 || progress.RequiredApprovals != 2 {
		t.Fatalf("unexpected progress %d/%d", progress.CurrentApprovals, progress.RequiredApprovals)
	}
	if scheduler.scheduledCount() != 0 {
		t.Fatalf("settlement must not be scheduled before the threshold")
	}
	keys := publisher.routingKeys()
	if len(keys) != 1 || keys[0] != domain.EventTransferApproved {
		t.Fatalf("expected one %s event, got %v", domain.EventTransferApproved, keys)
	}
}

func TestApproveTransfer_ThresholdCrossedSchedulesSettlement(t *testing.T) {
	repo, scheduler, _, svc, bankID := newApprovalFixture()
	repo.progress = &domain.ApprovalProgress{
		CurrentApprovals:  2,
		RequiredApprovals: 2,
		Status:            domain.TransferStatusProcessing,
		ApprovalStatus:    domain.ApprovalStatusApproved,
		ThresholdCrossed:  true,
	}

	progress, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: repo.approver.ID})
	if err != nil {
		t.Fatalf("ApproveTransfer returned error: %v", err)
	}
	if progress.Status != domain.TransferStatusProcessing {
		t.Fatalf("expected processing status after threshold, got %q", progress.Status)
	}
	if scheduler.scheduledCount() != 1 {
		t.Fatalf("expected settlement to be scheduled exactly once, got %d", scheduler.scheduledCount())
	}
}

// concurrentApprovalRepo is an in-memory repository whose RecordApproval
// mirrors the transactional semantics of the real one: one ledger entry per
// approver, monotonic counter, and a single threshold transition.
type concurrentApprovalRepo struct {
	store.Repository

	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	role      *domain.Role
	transfer  domain.Transfer
	approvals map[uuid.UUID]bool
}

func (r *concurrentApprovalRepo) FindUserByID(ctx context.Context, bankID uuid.UUID, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (r *concurrentApprovalRepo) FindTransferByID(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transfer.ID != transferID {
		return nil, store.ErrTransferNotFound
	}
	snapshot := r.transfer
	return &snapshot, nil
}

func (r *concurrentApprovalRepo) HasApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approvals[approverUserID], nil
}

func (r *concurrentApprovalRepo) FindRoleByName(ctx context.Context, bankID uuid.UUID, name string) (*domain.Role, error) {
	return r.role, nil
}

func (r *concurrentApprovalRepo) RecordApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID, comments string) (*domain.ApprovalProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approvals[approverUserID] {
		return nil, store.ErrDuplicateApproval
	}
	if r.transfer.Status != domain.TransferStatusPendingApproval {
		return nil, store.ErrTransferNotApprovable
	}
	r.approvals[approverUserID] = true
	r.transfer.CurrentApprovals++

	progress := &domain.ApprovalProgress{
		CurrentApprovals:  r.transfer.CurrentApprovals,
		RequiredApprovals: r.transfer.RequiredApprovals,
		Status:            r.transfer.Status,
		ApprovalStatus:    r.transfer.ApprovalStatus,
	}
	if r.transfer.CurrentApprovals >= r.transfer.RequiredApprovals {
		r.transfer.Status = domain.TransferStatusProcessing
		r.transfer.ApprovalStatus = domain.ApprovalStatusApproved
		progress.Status = r.transfer.Status
		progress.ApprovalStatus = r.transfer.ApprovalStatus
		progress.ThresholdCrossed = true
	}
	return progress, nil
}

func TestApproveTransfer_ConcurrentApproversNeverDoubleCount(t *testing.T) {
	bankID := uuid.New()
	const required = 3

	repo := &concurrentApprovalRepo{
		users:     make(map[uuid.UUID]*domain.User),
		role:      &domain.Role{ID: uuid.New(), BankID: bankID, Name: "manager", Level: 7},
		approvals: make(map[uuid.UUID]bool),
		transfer: domain.Transfer{
			ID:                uuid.New(),
			BankID:            bankID,
			Status:            domain.TransferStatusPendingApproval,
			ApprovalStatus:    domain.ApprovalStatusPending,
			RequiredApprovals: required,
			RequiredRoleLevel: 7,
		},
	}
	approverIDs := make([]uuid.UUID, required)
	for i := range approverIDs {
		id := uuid.New()
		approverIDs[i] = id
		repo.users[id] = &domain.User{ID: id, BankID: bankID, Username: "manager", RoleName: "manager", Status: domain.UserStatusActive}
	}

	scheduler := &fakeScheduler{}
	svc := NewService(repo, nil, 24*time.Hour, 0, bcrypt.MinCost)
	svc.SetSettlementScheduler(scheduler)

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	thresholdObservations := 0
	for _, approverID := range approverIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			progress, err := svc.ApproveTransfer(context.Background(), bankID, repo.transfer.ID, domain.ApproveTransferRequest{ApproverUserID: id})
			if err != nil {
				t.Errorf("unexpected approval error: %v", err)
				return
			}
			if progress.ThresholdCrossed {
				progressMu.Lock()
				thresholdObservations++
				progressMu.Unlock()
			}
		}(approverID)
	}
	wg.Wait()

	repo.mu.Lock()
	finalCount := repo.transfer.CurrentApprovals
	finalStatus := repo.transfer.Status
	repo.mu.Unlock()

	if finalCount != required {
		t.Fatalf("expected exactly %d recorded approvals, got %d", required, finalCount)
	}
	if finalStatus != domain.TransferStatusProcessing {
		t.Fatalf("expected transfer to reach processing, got %q", finalStatus)
	}
	if thresholdObservations != 1 {
		t.Fatalf("exactly one approval may observe the threshold transition, got %d", thresholdObservations)
	}
	if scheduler.scheduledCount() != 1 {
		t.Fatalf("settlement must be scheduled exactly once, got %d", scheduler.scheduledCount())
	}
}
