package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys published to the banking events exchange for transfer
// lifecycle updates. Delivery is best-effort; a failed publish never rolls
// back a workflow decision.
const (
	EventTransferInitiated = "transfer.initiated"
	EventTransferApproved  = "transfer.approved"
	EventTransferCompleted = "transfer.completed"
	EventTransferFailed    = "transfer.failed"
	EventTransferExpired   = "transfer.expired"
)

// TransferEvent is the message payload emitted for transfer lifecycle updates.
type TransferEvent struct {
	EventID           string     `json:"event_id"`
	EventType         string     `json:"event_type"`
	BankID            uuid.UUID  `json:"bank_id"`
	TransferID        uuid.UUID  `json:"transfer_id"`
	Status            string     `json:"status"`
	ApprovalStatus    string     `json:"approval_status"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	CurrentApprovals  int        `json:"current_approvals"`
	RequiredApprovals int        `json:"required_approvals"`
	Reason            string     `json:"reason,omitempty"`
	ApproverUserID    *uuid.UUID `json:"approver_user_id,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}
