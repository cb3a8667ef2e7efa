/**
 * @description
 * Scheduled job that fails transfers whose approval deadline has passed while
 * still awaiting approvals. Registered with the cron runner at bootstrap.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/nisr16/stablecoin-banking-api/internal/domain"
)

const approvalExpiredReason = "approval window expired"

// ExpireOverdueApprovals sweeps transfers past their approval deadline into
// the failed terminal state and emits an expiry event for each.
func (s *Service) ExpireOverdueApprovals() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	expired, err := s.repo.ExpireOverdueTransfers(ctx, time.Now().UTC(), approvalExpiredReason)
	if err != nil {
		log.Printf("level=error component=app op=expire_approvals msg=\"sweep failed\" err=%v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	for i := range expired {
		transfer := &expired[i]
		// A deadline can only expire before the threshold is reached, so no
		// settlement timer is armed; Cancel is a no-op safety valve.
		s.settlements.Cancel(transfer.ID)
		s.emitTransferEvent(ctx, domain.EventTransferExpired, transfer, approvalExpiredReason, nil)
	}

	log.Printf("level=info component=app op=expire_approvals expired_count=%d", len(expired))
}
