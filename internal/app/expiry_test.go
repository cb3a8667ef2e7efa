package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"github.com/nisr16/stablecoin-banking-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type expiryRepoStub struct {
	store.Repository

	expired    []domain.Transfer
	gotReason  string
	gotCutoff  time.Time
	sweepError error
}

func (s *expiryRepoStub) ExpireOverdueTransfers(ctx context.Context, now time.Time, reason string) ([]domain.Transfer, error) {
	s.gotReason = reason
	s.gotCutoff = now
	return s.expired, s.sweepError
}

func TestExpireOverdueApprovals_FailsExpiredTransfersAndEmitsEvents(t *testing.T) {
	bankID := uuid.New()
	repo := &expiryRepoStub{
		expired: []domain.Transfer{
			{ID: uuid.New(), BankID: bankID, Status: domain.TransferStatusFailed, RequiredApprovals: 2, CurrentApprovals: 1},
			{ID: uuid.New(), BankID: bankID, Status: domain.TransferStatusFailed, RequiredApprovals: 1, CurrentApprovals: 0},
		},
	}
	scheduler := &fakeScheduler{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, 24*time.Hour, 0, bcrypt.MinCost)
	svc.SetSettlementScheduler(scheduler)

	svc.ExpireOverdueApprovals()

	if repo.gotReason != "approval window expired" {
		t.Fatalf("unexpected expiry reason %q", repo.gotReason)
	}
	if len(scheduler.cancelled) != 2 {
		t.Fatalf("expected settlement cancelled for each expired transfer, got %d", len(scheduler.cancelled))
	}
	keys := publisher.routingKeys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 expiry events, got %v", keys)
	}
	for _, key := range keys {
		if key != domain.EventTransferExpired {
			t.Fatalf("expected %s events, got %v", domain.EventTransferExpired, keys)
		}
	}
}

func TestExpireOverdueApprovals_NoopWhenNothingExpired(t *testing.T) {
	repo := &expiryRepoStub{}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, 24*time.Hour, 0, bcrypt.MinCost)
	defer svc.Shutdown()

	svc.ExpireOverdueApprovals()

	if len(publisher.routingKeys()) != 0 {
		t.Fatalf("no events may be emitted when nothing expired")
	}
}
