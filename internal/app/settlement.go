/**
 * @description
 * Settlement scheduling. Settlement is the simulated finalization step that
 * moves a processing transfer to completed after a short delay. It is modeled
 * as an explicit, cancellable scheduled task keyed by transfer id rather than
 * a bare timer, so a transfer cannot be completed after being independently
 * failed, and so a graceful shutdown can abandon pending work.
 */

package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
)

// SettlementScheduler schedules deferred settlement work keyed by transfer id.
type SettlementScheduler interface {
	Schedule(transferID uuid.UUID)
	Cancel(transferID uuid.UUID)
	Stop()
}

// TimerSettlementScheduler runs settlement after a fixed delay using
// in-process timers. Scheduling the same transfer twice resets its timer.
type TimerSettlementScheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	settle  func(transferID uuid.UUID)
	timers  map[uuid.UUID]*time.Timer
	stopped bool
}

// NewTimerSettlementScheduler creates a scheduler that invokes settle once per
// scheduled transfer after the configured delay.
func NewTimerSettlementScheduler(delay time.Duration, settle func(transferID uuid.UUID)) *TimerSettlementScheduler {
	return &TimerSettlementScheduler{
		delay:  delay,
		settle: settle,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule arms (or re-arms) the settlement timer for a transfer.
func (t *TimerSettlementScheduler) Schedule(transferID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if timer, ok := t.timers[transferID]; ok {
		timer.Stop()
	}
	t.timers[transferID] = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		delete(t.timers, transferID)
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
		t.settle(transferID)
	})
}

// Cancel disarms the settlement timer for a transfer, if one is pending.
func (t *TimerSettlementScheduler) Cancel(transferID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[transferID]; ok {
		timer.Stop()
		delete(t.timers, transferID)
	}
}

// Stop cancels all pending timers and rejects future scheduling.
func (t *TimerSettlementScheduler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// settleTransfer is the deferred settlement task. It finalizes the transfer
// through the repository's transactional settle, or fails it when the funding
// wallet cannot cover the amount.
func (s *Service) settleTransfer(transferID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	transfer, err := s.repo.SettleTransfer(ctx, transferID)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotProcessing) {
			// The transfer was failed or cancelled while the timer was armed.
			log.Printf("level=info component=app op=settle_transfer outcome=skipped transfer_id=%s reason=not_processing", transferID)
			return
		}
		if errors.Is(err, store.ErrInsufficientFunds) && transfer != nil {
			reason := "insufficient wallet funds at settlement"
			if markErr := s.repo.MarkTransferFailed(ctx, transferID, reason); markErr != nil {
				log.Printf("level=error component=app op=settle_transfer msg=\"failed to mark transfer failed\" transfer_id=%s err=%v", transferID, markErr)
				return
			}
			transfer.Status = domain.TransferStatusFailed
			s.emitTransferEvent(ctx, domain.EventTransferFailed, transfer, reason, nil)
			log.Printf("level=warn component=app op=settle_transfer outcome=failed transfer_id=%s reason=%q", transferID, reason)
			return
		}
		log.Printf("level=error component=app op=settle_transfer msg=\"settlement failed\" transfer_id=%s err=%v", transferID, err)
		return
	}

	s.emitTransferEvent(ctx, domain.EventTransferCompleted, transfer, "", nil)
	log.Printf("level=info component=app op=settle_transfer outcome=completed transfer_id=%s amount=%d", transferID, transfer.Amount)
}
