/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the banking API. Defining an interface
 * decouples the approval-workflow business logic from the PostgreSQL
 * implementation and lets tests substitute in-memory stubs.
 *
 * Every query is scoped by bank id; cross-bank reads are not expressible
 * through this interface.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Bank and API key methods
	CreateBank(ctx context.Context, bank *domain.Bank, apiKeyHash string) error
	FindBankByAPIKeyPrefix(ctx context.Context, prefix string) (*domain.Bank, string, error)

	// Role methods
	CreateRoles(ctx context.Context, roles []domain.Role) error
	FindRoleByName(ctx context.Context, bankID uuid.UUID, name string) (*domain.Role, error)
	ListRoles(ctx context.Context, bankID uuid.UUID) ([]domain.Role, error)

	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, bankID uuid.UUID, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context, bankID uuid.UUID) ([]domain.User, error)

	// Wallet methods
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	FindWalletByID(ctx context.Context, bankID uuid.UUID, walletID uuid.UUID) (*domain.Wallet, error)
	ListWallets(ctx context.Context, bankID uuid.UUID) ([]domain.Wallet, error)

	// Approval rule methods
	CreateApprovalRules(ctx context.Context, rules []domain.ApprovalRule) error
	ListApprovalRules(ctx context.Context, bankID uuid.UUID) ([]domain.ApprovalRule, error)

	// Transfer methods
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	FindTransferByID(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID) (*domain.Transfer, error)
	ListPendingTransfers(ctx context.Context, bankID uuid.UUID) ([]domain.Transfer, error)
	ListApprovalsByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.ApprovalRecord, error)
	HasApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID) (bool, error)

	// RecordApproval atomically appends an approval-ledger entry and increments
	// current_approvals, transitioning the transfer to processing/approved when
	// the incremented count reaches required_approvals. The whole operation is
	// one database transaction; concurrent calls for the same transfer cannot
	// double-count, and at most one of them observes ThresholdCrossed.
	RecordApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID, comments string) (*domain.ApprovalProgress, error)

	// SettleTransfer finalizes a processing transfer: debits the source wallet
	// and marks the transfer completed, in one transaction. Returns
	// ErrTransferNotProcessing if the transfer has left the processing state
	// (for example after an independent failure). ErrInsufficientFunds is
	// returned together with the transfer when the wallet cannot cover the
	// amount, so the caller can record the failure.
	SettleTransfer(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error)

	MarkTransferFailed(ctx context.Context, transferID uuid.UUID, reason string) error
	ExpireOverdueTransfers(ctx context.Context, now time.Time, reason string) ([]domain.Transfer, error)
}
