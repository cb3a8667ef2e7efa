/**
 * @description
 * This file defines the tenant-side domain models for the banking API: banks,
 * their permission roles, users, and wallets. A bank is the isolation boundary
 * for every other entity in the system; nothing ever references data across
 * bank boundaries.
 *
 * @notes
 * - Monetary amounts are stored as `int64` in cents, which avoids floating-point
 *   inaccuracies with financial data.
 * - Role capabilities are typed booleans validated at role-definition time,
 *   never free-form permission strings.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bank represents an onboarded tenant. All roles, rules, users, wallets and
// transfers belong to exactly one bank.
type Bank struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Country      string    `json:"country,omitempty"`
	APIKeyPrefix string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is a permission level within a bank. Level is a total order used for
// approval-eligibility comparisons; names are unique per bank.
type Role struct {
	ID                  uuid.UUID `json:"id"`
	BankID              uuid.UUID `json:"bank_id"`
	Name                string    `json:"name"`
	Level               int       `json:"level"`
	MaxTransferAmount   int64     `json:"max_transfer_amount"` // in cents
	CanApproveTransfers bool      `json:"can_approve_transfers"`
	CanCreateUsers      bool      `json:"can_create_users"`
	CanModifySettings   bool      `json:"can_modify_settings"`
	CreatedAt           time.Time `json:"created_at"`
}

// User statuses.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User is a bank employee who can initiate and approve transfers. The
// effective role level is looked up at approval time, not cached, so role
// changes take effect immediately.
type User struct {
	ID        uuid.UUID `json:"id"`
	BankID    uuid.UUID `json:"bank_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	RoleName  string    `json:"role_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Wallet is a bank-owned balance that funds outgoing transfers.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	BankID    uuid.UUID `json:"bank_id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"` // in cents
	CreatedAt time.Time `json:"created_at"`
}

// RegisterBankRequest is the DTO for bank onboarding requests.
type RegisterBankRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// RegisterBankResponse carries the freshly generated API key. The key is
// returned exactly once; only its bcrypt hash is stored.
type RegisterBankResponse struct {
	BankID  uuid.UUID `json:"bank_id"`
	Name    string    `json:"name"`
	APIKey  string    `json:"api_key"`
	Message string    `json:"message"`
}

// CreateUserRequest is the DTO for creating a bank user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleName string `json:"role_name"`
}

// CreateWalletRequest is the DTO for creating a wallet.
type CreateWalletRequest struct {
	Name           string `json:"name"`
	Currency       string `json:"currency"`
	InitialBalance int64  `json:"initial_balance"` // in cents
}
