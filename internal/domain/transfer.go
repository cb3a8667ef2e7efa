/**
 * @description
 * This file defines the core domain models for the approval workflow: transfers,
 * approval rules, and the append-only approval ledger. The Transfer struct maps
 * directly to the `transfers` table and owns its own approval-progress counters.
 *
 * @notes
 * - The rule that applied at initiation is frozen onto the transfer
 *   (required_approvals AND required_role_level), so later rule-table changes
 *   never affect an in-flight transfer.
 * - The default fallback rule is an explicit sentinel (IsDefault=true) so call
 *   sites can distinguish "configured auto-approve" from "no rule matched".
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transfer lifecycle states.
const (
	TransferStatusPendingApproval = "pending_approval"
	TransferStatusProcessing      = "processing"
	TransferStatusCompleted       = "completed"
	TransferStatusFailed          = "failed"
)

// Approval states for a transfer.
const (
	ApprovalStatusAutoApproved = "auto_approved"
	ApprovalStatusPending      = "pending_approval"
	ApprovalStatusApproved     = "approved"
)

// ApprovalRule is an amount-range policy owned by a bank. A nil MaxAmount
// means the range is unbounded at the upper end. Ranges may overlap; the
// resolver picks the match with the largest MinAmount.
type ApprovalRule struct {
	ID                uuid.UUID `json:"id"`
	BankID            uuid.UUID `json:"bank_id"`
	RuleName          string    `json:"rule_name"`
	MinAmount         int64     `json:"min_amount"`           // in cents
	MaxAmount         *int64    `json:"max_amount,omitempty"` // nil = unbounded
	RequiredRoleLevel int       `json:"required_role_level"`
	RequiredApprovals int       `json:"required_approvals"`
	AutoApprove       bool      `json:"auto_approve"`
	IsDefault         bool      `json:"-"` // synthetic fallback, never persisted
	CreatedAt         time.Time `json:"created_at"`
}

// DefaultRule returns the synthetic fallback policy used when no configured
// rule matches an amount. Transfers are never blocked solely because the rule
// table has a gap; the safety default is auto-approval at the bank's lowest
// defined role level.
func DefaultRule(lowestRoleLevel int) ApprovalRule {
	return ApprovalRule{
		RuleName:          "default_auto_approve",
		RequiredRoleLevel: lowestRoleLevel,
		RequiredApprovals: 0,
		AutoApprove:       true,
		IsDefault:         true,
	}
}

// Matches reports whether the rule's amount range contains the given amount.
func (r ApprovalRule) Matches(amount int64) bool {
	if amount < r.MinAmount {
		return false
	}
	return r.MaxAmount == nil || amount <= *r.MaxAmount
}

// Transfer is the central entity representing one money movement. Its
// approval counters only ever increase, by exactly one per recorded approval,
// and current_approvals never exceeds required_approvals.
type Transfer struct {
	ID                 uuid.UUID  `json:"id"`
	BankID             uuid.UUID  `json:"bank_id"`
	SourceWalletID     uuid.UUID  `json:"source_wallet_id"`
	Amount             int64      `json:"amount"` // in cents
	Currency           string     `json:"currency"`
	DestinationAddress string     `json:"destination_address"`
	Description        string     `json:"description,omitempty"`
	InitiatedBy        uuid.UUID  `json:"initiated_by"`
	Status             string     `json:"status"`
	ApprovalStatus     string     `json:"approval_status"`
	RuleName           string     `json:"rule_name"`
	RequiredApprovals  int        `json:"required_approvals"`
	CurrentApprovals   int        `json:"current_approvals"`
	RequiredRoleLevel  int        `json:"required_role_level"`
	ApprovalDeadline   *time.Time `json:"approval_deadline,omitempty"`
	FailureReason      *string    `json:"failure_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ApprovalRecord is one entry in the append-only approval ledger. Records are
// unique per (transfer_id, approver_user_id) and are never mutated or deleted.
type ApprovalRecord struct {
	ID               uuid.UUID `json:"id"`
	TransferID       uuid.UUID `json:"transfer_id"`
	ApproverUserID   uuid.UUID `json:"approver_user_id"`
	ApproverUsername string    `json:"approver_username,omitempty"`
	Comments         string    `json:"comments,omitempty"`
	ApprovedAt       time.Time `json:"approved_at"`
}

// ApprovalProgress summarizes the outcome of recording a single approval.
// ThresholdCrossed is true for exactly one approval per transfer: the one
// that moved current_approvals up to required_approvals.
type ApprovalProgress struct {
	CurrentApprovals  int    `json:"current_approvals"`
	RequiredApprovals int    `json:"required_approvals"`
	Status            string `json:"status"`
	ApprovalStatus    string `json:"approval_status"`
	ThresholdCrossed  bool   `json:"-"`
}

// InitiateTransferRequest is the DTO for incoming transfer initiation requests.
type InitiateTransferRequest struct {
	SourceWalletID     uuid.UUID `json:"source_wallet_id"`
	Amount             int64     `json:"amount"` // in cents
	Currency           string    `json:"currency"`
	DestinationAddress string    `json:"destination_address"`
	Description        string    `json:"description"`
	InitiatedBy        uuid.UUID `json:"initiated_by"`
}

// ApproveTransferRequest is the DTO for approval submissions.
type ApproveTransferRequest struct {
	ApproverUserID uuid.UUID `json:"approver_user_id"`
	Comments       string    `json:"comments"`
}

// InitiateTransferResult pairs the created transfer with a next-steps hint
// for the caller. The hint is surfaced in the response, never persisted.
type InitiateTransferResult struct {
	Transfer  *Transfer `json:"transfer"`
	NextSteps string    `json:"next_steps,omitempty"`
}

// TransferStatusResult is the read model for the status endpoint. Percentage
// is 0 when required_approvals is 0 (the auto-approved case).
type TransferStatusResult struct {
	TransferID        uuid.UUID        `json:"transfer_id"`
	Status            string           `json:"status"`
	ApprovalStatus    string           `json:"approval_status"`
	CurrentApprovals  int              `json:"current_approvals"`
	RequiredApprovals int              `json:"required_approvals"`
	Percentage        int              `json:"percentage"`
	Approvals         []ApprovalRecord `json:"approvals"`
}
