/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * for banks, roles, users, wallets, approval rules, transfers and the
 * approval ledger.
 *
 * The two transactional methods, RecordApproval and SettleTransfer, carry the
 * only strict concurrency guarantees in the system: at-most-once approval per
 * (transfer, approver) and exactly-once threshold/settlement transitions. Both
 * take a row lock on the transfer before reading its counters.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
)

var (
	ErrBankNotFound          = errors.New("bank not found")
	ErrRoleNotFound          = errors.New("role not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrTransferNotFound      = errors.New("transfer not found")
	ErrDuplicateApproval     = errors.New("approver has already approved this transfer")
	ErrTransferCompleted     = errors.New("transfer is already completed")
	ErrTransferNotApprovable = errors.New("transfer is not approvable")
	ErrNoApprovalNeeded      = errors.New("transfer was auto-approved; no approvals accepted")
	ErrTransferNotProcessing = errors.New("transfer is not in processing state")
	ErrInsufficientFunds     = errors.New("insufficient wallet funds")
	ErrDuplicateRoleName     = errors.New("role name already exists for this bank")
	ErrDuplicateUsername     = errors.New("username already exists for this bank")
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateBank inserts a new bank together with its API key credential.
// Only the bcrypt hash of the key secret is persisted.
func (r *PostgresRepository) CreateBank(ctx context.Context, bank *domain.Bank, apiKeyHash string) error {
	query := `
		INSERT INTO banks (id, name, country, api_key_prefix, api_key_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query, bank.ID, bank.Name, bank.Country, bank.APIKeyPrefix, apiKeyHash).Scan(&bank.CreatedAt)
}

// FindBankByAPIKeyPrefix resolves a bank from the public prefix of its API key.
// The stored hash is returned so the caller can verify the key secret.
func (r *PostgresRepository) FindBankByAPIKeyPrefix(ctx context.Context, prefix string) (*domain.Bank, string, error) {
	var bank domain.Bank
	var hash string
	query := `SELECT id, name, country, api_key_prefix, api_key_hash, created_at FROM banks WHERE api_key_prefix = $1`
	err := r.db.QueryRow(ctx, query, prefix).Scan(&bank.ID, &bank.Name, &bank.Country, &bank.APIKeyPrefix, &hash, &bank.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", ErrBankNotFound
		}
		return nil, "", err
	}
	return &bank, hash, nil
}

// CreateRoles inserts a batch of roles for a bank.
func (r *PostgresRepository) CreateRoles(ctx context.Context, roles []domain.Role) error {
	query := `
		INSERT INTO roles (id, bank_id, name, level, max_transfer_amount, can_approve_transfers, can_create_users, can_modify_settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	for i := range roles {
		role := &roles[i]
		_, err := r.db.Exec(ctx, query,
			role.ID, role.BankID, role.Name, role.Level, role.MaxTransferAmount,
			role.CanApproveTransfers, role.CanCreateUsers, role.CanModifySettings,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrDuplicateRoleName
			}
			return fmt.Errorf("failed to insert role %q: %w", role.Name, err)
		}
	}
	return nil
}

// FindRoleByName retrieves a role by its bank-unique name.
func (r *PostgresRepository) FindRoleByName(ctx context.Context, bankID uuid.UUID, name string) (*domain.Role, error) {
	var role domain.Role
	query := `
		SELECT id, bank_id, name, level, max_transfer_amount, can_approve_transfers, can_create_users, can_modify_settings, created_at
		FROM roles
		WHERE bank_id = $1 AND name = $2
	`
	err := r.db.QueryRow(ctx, query, bankID, name).Scan(
		&role.ID, &role.BankID, &role.Name, &role.Level, &role.MaxTransferAmount,
		&role.CanApproveTransfers, &role.CanCreateUsers, &role.CanModifySettings, &role.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles returns a bank's roles ordered by level ascending.
func (r *PostgresRepository) ListRoles(ctx context.Context, bankID uuid.UUID) ([]domain.Role, error) {
	query := `
		SELECT id, bank_id, name, level, max_transfer_amount, can_approve_transfers, can_create_users, can_modify_settings, created_at
		FROM roles
		WHERE bank_id = $1
		ORDER BY level ASC
	`
	rows, err := r.db.Query(ctx, query, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(
			&role.ID, &role.BankID, &role.Name, &role.Level, &role.MaxTransferAmount,
			&role.CanApproveTransfers, &role.CanCreateUsers, &role.CanModifySettings, &role.CreatedAt,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateUser inserts a new bank user.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, bank_id, username, email, role_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, user.BankID, user.Username, user.Email, user.RoleName, user.Status).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// FindUserByID retrieves a user scoped to a bank.
func (r *PostgresRepository) FindUserByID(ctx context.Context, bankID uuid.UUID, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT id, bank_id, username, email, role_name, status, created_at
		FROM users
		WHERE bank_id = $1 AND id = $2
	`
	err := r.db.QueryRow(ctx, query, bankID, userID).Scan(
		&user.ID, &user.BankID, &user.Username, &user.Email, &user.RoleName, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users of a bank, newest first.
func (r *PostgresRepository) ListUsers(ctx context.Context, bankID uuid.UUID) ([]domain.User, error) {
	query := `
		SELECT id, bank_id, username, email, role_name, status, created_at
		FROM users
		WHERE bank_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.BankID, &user.Username, &user.Email, &user.RoleName, &user.Status, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateWallet inserts a new wallet.
func (r *PostgresRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, bank_id, name, currency, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query, wallet.ID, wallet.BankID, wallet.Name, wallet.Currency, wallet.Balance).Scan(&wallet.CreatedAt)
}

// FindWalletByID retrieves a wallet scoped to a bank.
func (r *PostgresRepository) FindWalletByID(ctx context.Context, bankID uuid.UUID, walletID uuid.UUID) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, bank_id, name, currency, balance, created_at FROM wallets WHERE bank_id = $1 AND id = $2`
	err := r.db.QueryRow(ctx, query, bankID, walletID).Scan(
		&wallet.ID, &wallet.BankID, &wallet.Name, &wallet.Currency, &wallet.Balance, &wallet.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// ListWallets returns all wallets of a bank.
func (r *PostgresRepository) ListWallets(ctx context.Context, bankID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT id, bank_id, name, currency, balance, created_at FROM wallets WHERE bank_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var wallet domain.Wallet
		if err := rows.Scan(&wallet.ID, &wallet.BankID, &wallet.Name, &wallet.Currency, &wallet.Balance, &wallet.CreatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

// CreateApprovalRules inserts a batch of approval rules for a bank.
func (r *PostgresRepository) CreateApprovalRules(ctx context.Context, rules []domain.ApprovalRule) error {
	query := `
		INSERT INTO approval_rules (id, bank_id, rule_name, min_amount, max_amount, required_role_level, required_approvals, auto_approve, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	for i := range rules {
		rule := &rules[i]
		_, err := r.db.Exec(ctx, query,
			rule.ID, rule.BankID, rule.RuleName, rule.MinAmount, rule.MaxAmount,
			rule.RequiredRoleLevel, rule.RequiredApprovals, rule.AutoApprove,
		)
		if err != nil {
			return fmt.Errorf("failed to insert approval rule %q: %w", rule.RuleName, err)
		}
	}
	return nil
}

// ListApprovalRules returns a bank's rule table ordered by min_amount ascending.
func (r *PostgresRepository) ListApprovalRules(ctx context.Context, bankID uuid.UUID) ([]domain.ApprovalRule, error) {
	query := `
		SELECT id, bank_id, rule_name, min_amount, max_amount, required_role_level, required_approvals, auto_approve, created_at
		FROM approval_rules
		WHERE bank_id = $1
		ORDER BY min_amount ASC
	`
	rows, err := r.db.Query(ctx, query, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.ApprovalRule
	for rows.Next() {
		var rule domain.ApprovalRule
		if err := rows.Scan(
			&rule.ID, &rule.BankID, &rule.RuleName, &rule.MinAmount, &rule.MaxAmount,
			&rule.RequiredRoleLevel, &rule.RequiredApprovals, &rule.AutoApprove, &rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateTransfer inserts a new transfer row with the rule snapshot fixed at
// initiation time.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, bank_id, source_wallet_id, amount, currency, destination_address, description,
			initiated_by, status, approval_status, rule_name, required_approvals,
			current_approvals, required_role_level, approval_deadline, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		transfer.ID, transfer.BankID, transfer.SourceWalletID, transfer.Amount, transfer.Currency,
		transfer.DestinationAddress, transfer.Description, transfer.InitiatedBy, transfer.Status,
		transfer.ApprovalStatus, transfer.RuleName, transfer.RequiredApprovals,
		transfer.CurrentApprovals, transfer.RequiredRoleLevel, transfer.ApprovalDeadline,
	).Scan(&transfer.CreatedAt, &transfer.UpdatedAt)
}

const transferColumns = `
	id, bank_id, source_wallet_id, amount, currency, destination_address, description,
	initiated_by, status, approval_status, rule_name, required_approvals,
	current_approvals, required_role_level, approval_deadline, failure_reason, created_at, updated_at
`

func scanTransfer(row pgx.Row, transfer *domain.Transfer) error {
	return row.Scan(
		&transfer.ID, &transfer.BankID, &transfer.SourceWalletID, &transfer.Amount, &transfer.Currency,
		&transfer.DestinationAddress, &transfer.Description, &transfer.InitiatedBy, &transfer.Status,
		&transfer.ApprovalStatus, &transfer.RuleName, &transfer.RequiredApprovals,
		&transfer.CurrentApprovals, &transfer.RequiredRoleLevel, &transfer.ApprovalDeadline,
		&transfer.FailureReason, &transfer.CreatedAt, &transfer.UpdatedAt,
	)
}

// FindTransferByID retrieves a transfer scoped to a bank.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, bankID uuid.UUID, transferID uuid.UUID) (*domain.Transfer, error) {
	var transfer domain.Transfer
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE bank_id = $1 AND id = $2`
	err := scanTransfer(r.db.QueryRow(ctx, query, bankID, transferID), &transfer)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

// ListPendingTransfers returns a bank's transfers that are still in flight
// (pending approval or processing), most recent first.
func (r *PostgresRepository) ListPendingTransfers(ctx context.Context, bankID uuid.UUID) ([]domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE bank_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, bankID, domain.TransferStatusPendingApproval, domain.TransferStatusProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var transfer domain.Transfer
		if err := scanTransfer(rows, &transfer); err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

// ListApprovalsByTransferID returns the approval ledger for a transfer in
// approval order.
func (r *PostgresRepository) ListApprovalsByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.ApprovalRecord, error) {
	query := `
		SELECT a.id, a.transfer_id, a.approver_user_id, COALESCE(u.username, ''), a.comments, a.approved_at
		FROM transfer_approvals a
		LEFT JOIN users u ON u.id = a.approver_user_id
		WHERE a.transfer_id = $1
		ORDER BY a.approved_at ASC
	`
	rows, err := r.db.Query(ctx, query, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ApprovalRecord
	for rows.Next() {
		var record domain.ApprovalRecord
		if err := rows.Scan(&record.ID, &record.TransferID, &record.ApproverUserID, &record.ApproverUsername, &record.Comments, &record.ApprovedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// HasApproval reports whether an approver already has a ledger entry for a transfer.
func (r *PostgresRepository) HasApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM transfer_approvals WHERE transfer_id = $1 AND approver_user_id = $2)`
	if err := r.db.QueryRow(ctx, query, transferID, approverUserID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// RecordApproval performs the atomic approval-recording operation.
func (r *PostgresRepository) RecordApproval(ctx context.Context, transferID uuid.UUID, approverUserID uuid.UUID, comments string) (*domain.ApprovalProgress, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the transfer row and validate its state under the lock.
	var status, approvalStatus string
	var currentApprovals, requiredApprovals int
	lockQuery := `
		SELECT status, approval_status, current_approvals, required_approvals
		FROM transfers
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lockQuery, transferID).Scan(&status, &approvalStatus, &currentApprovals, &requiredApprovals)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to lock transfer: %w", err)
	}

	if status == domain.TransferStatusCompleted {
		return nil, ErrTransferCompleted
	}
	if approvalStatus == domain.ApprovalStatusAutoApproved {
		return nil, ErrNoApprovalNeeded
	}
	if status != domain.TransferStatusPendingApproval {
		return nil, ErrTransferNotApprovable
	}

	// 2. Append the ledger entry. The unique (transfer_id, approver_user_id)
	// constraint is the last line of defense against double approval.
	insertQuery := `
		INSERT INTO transfer_approvals (id, transfer_id, approver_user_id, comments, approved_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.Exec(ctx, insertQuery, uuid.New(), transferID, approverUserID, comments); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateApproval
		}
		return nil, fmt.Errorf("failed to insert approval record: %w", err)
	}

	// 3. Increment the progress counter.
	progress := &domain.ApprovalProgress{
		RequiredApprovals: requiredApprovals,
	}
	incrementQuery := `
		UPDATE transfers
		SET current_approvals = current_approvals + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING current_approvals
	`
	if err := tx.QueryRow(ctx, incrementQuery, transferID).Scan(&progress.CurrentApprovals); err != nil {
		return nil, fmt.Errorf("failed to increment approval count: %w", err)
	}

	// 4. Exactly-once threshold transition, decided under the same lock.
	if progress.CurrentApprovals >= requiredApprovals {
		transitionQuery := `
			UPDATE transfers
			SET status = $2, approval_status = $3, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, transitionQuery, transferID, domain.TransferStatusProcessing, domain.ApprovalStatusApproved); err != nil {
			return nil, fmt.Errorf("failed to transition transfer: %w", err)
		}
		progress.Status = domain.TransferStatusProcessing
		progress.ApprovalStatus = domain.ApprovalStatusApproved
		progress.ThresholdCrossed = true
	} else {
		progress.Status = domain.TransferStatusPendingApproval
		progress.ApprovalStatus = domain.ApprovalStatusPending
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return progress, nil
}

// SettleTransfer finalizes a processing transfer in one transaction.
func (r *PostgresRepository) SettleTransfer(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the transfer and verify it is still settleable.
	var transfer domain.Transfer
	lockQuery := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 FOR UPDATE`
	if err := scanTransfer(tx.QueryRow(ctx, lockQuery, transferID), &transfer); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to lock transfer: %w", err)
	}
	if transfer.Status != domain.TransferStatusProcessing {
		return nil, ErrTransferNotProcessing
	}

	// 2. Debit the funding wallet, guarding against overdraft.
	debitQuery := `
		UPDATE wallets
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`
	tag, err := tx.Exec(ctx, debitQuery, transfer.SourceWalletID, transfer.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Hand the locked row back so the caller can record the failure.
		return &transfer, ErrInsufficientFunds
	}

	// 3. Mark the transfer completed.
	completeQuery := `
		UPDATE transfers
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := tx.QueryRow(ctx, completeQuery, transferID, domain.TransferStatusCompleted).Scan(&transfer.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to complete transfer: %w", err)
	}
	transfer.Status = domain.TransferStatusCompleted

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return &transfer, nil
}

// MarkTransferFailed moves a transfer to the failed terminal state with a reason.
func (r *PostgresRepository) MarkTransferFailed(ctx context.Context, transferID uuid.UUID, reason string) error {
	query := `
		UPDATE transfers
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status != $4
	`
	tag, err := r.db.Exec(ctx, query, transferID, domain.TransferStatusFailed, reason, domain.TransferStatusCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// ExpireOverdueTransfers fails every transfer still awaiting approval past its
// deadline and returns the affected rows so callers can emit notifications.
func (r *PostgresRepository) ExpireOverdueTransfers(ctx context.Context, now time.Time, reason string) ([]domain.Transfer, error) {
	query := `
		UPDATE transfers
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE status = $3 AND approval_deadline IS NOT NULL AND approval_deadline < $4
		RETURNING ` + transferColumns + `
	`
	rows, err := r.db.Query(ctx, query, domain.TransferStatusFailed, reason, domain.TransferStatusPendingApproval, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Transfer
	for rows.Next() {
		var transfer domain.Transfer
		if err := scanTransfer(rows, &transfer); err != nil {
			return nil, err
		}
		expired = append(expired, transfer)
	}
	return expired, rows.Err()
}
