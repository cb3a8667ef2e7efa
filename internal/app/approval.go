/**
 * @description
 * The approval engine: records a single approval against a pending transfer.
 * Preconditions are checked in a fixed order so every failure mode maps to a
 * stable, distinct error, and the effects (ledger append + counter increment +
 * threshold transition) happen atomically in the repository.
 *
 * Concurrency: the pre-checks here give deterministic error ordering; the
 * repository re-validates everything under a row lock, so two concurrent
 * approvals can neither double-count nor both trigger completion.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
)

// InsufficientRoleLevelError reports an approver whose role level is below the
// level the transfer requires. Both levels are surfaced to aid remediation.
type InsufficientRoleLevelError struct {
	RequiredLevel int
	ActualLevel   int
}

func (e *InsufficientRoleLevelError) Error() string {
	return fmt.Sprintf("approver role level %d is below required level %d", e.ActualLevel, e.RequiredLevel)
}

// ApproveTransfer records one approval for a transfer.
//
// Preconditions, checked in order, each a distinct failure mode:
//  1. approver is an active user of the bank        -> ErrInvalidApprover
//  2. transfer exists in the bank                   -> store.ErrTransferNotFound
//  3. transfer is not already completed             -> store.ErrTransferCompleted
//  4. transfer was not auto-approved                -> store.ErrNoApprovalNeeded
//  5. approver has not already approved it          -> store.ErrDuplicateApproval
//  6. approver's current role level meets the level -> *InsufficientRoleLevelError
//     frozen onto the transfer at initiation
func (s *Service) ApproveTransfer(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID, req domain.ApproveTransferRequest) (*domain.ApprovalProgress, error) {
	// 1. Approver must be an active user of this bank.
	approver, err := s.repo.FindUserByID(ctx, bankID, req.ApproverUserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidApprover
		}
		return nil, fmt.Errorf("failed to find approver: %w", err)
	}
	if approver.Status != domain.UserStatusActive {
		return nil, ErrInvalidApprover
	}

	// 2. Transfer must exist, scoped to this bank.
	transfer, err := s.repo.FindTransferByID(ctx, bankID, transferID)
	if err != nil {
		return nil, err
	}

	// 3. and 4. Terminal and auto-approved transfers accept no approvals.
	if transfer.Status == domain.TransferStatusCompleted {
		return nil, store.ErrTransferCompleted
	}
	if transfer.ApprovalStatus == domain.ApprovalStatusAutoApproved {
		return nil, store.ErrNoApprovalNeeded
	}

	// 5. One approval per approver per transfer. The unique constraint inside
	// RecordApproval makes this check race-safe; here it only fixes ordering.
	already, err := s.repo.HasApproval(ctx, transferID, approver.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check approval ledger: %w", err)
	}
	if already {
		return nil, store.ErrDuplicateApproval
	}

	// 6. The approver's current role level must meet the level frozen onto the
	// transfer when it was initiated. The role is looked up live, so demoting
	// a user takes effect immediately; the required level does not drift with
	// later rule-table edits.
	role, err := s.repo.FindRoleByName(ctx, bankID, approver.RoleName)
	if err != nil {
		return nil, fmt.Errorf("failed to find approver role: %w", err)
	}
	if role.Level < transfer.RequiredRoleLevel {
		return nil, &InsufficientRoleLevelError{
			RequiredLevel: transfer.RequiredRoleLevel,
			ActualLevel:   role.Level,
		}
	}

	progress, err := s.repo.RecordApproval(ctx, transferID, approver.ID, req.Comments)
	if err != nil {
		return nil, err
	}

	transfer.Status = progress.Status
	transfer.ApprovalStatus = progress.ApprovalStatus
	transfer.CurrentApprovals = progress.CurrentApprovals

	if progress.ThresholdCrossed {
		s.settlements.Schedule(transferID)
		s.emitTransferEvent(ctx, domain.EventTransferApproved, transfer, "approval threshold reached", &approver.ID)
	} else {
		s.emitTransferEvent(ctx, domain.EventTransferApproved, transfer, "", &approver.ID)
	}

	log.Printf("level=info component=app op=approve_transfer bank_id=%s transfer_id=%s approver_id=%s progress=%d/%d status=%s",
		bankID, transferID, approver.ID, progress.CurrentApprovals, progress.RequiredApprovals, progress.Status)

	return progress, nil
}
