/**
 * @description
 * Bank onboarding and API-key authentication. Registering a bank generates its
 * API key, seeds the fixed default role hierarchy, and installs the default
 * approval-rule table. Keys have the shape `sbk_<prefix>_<secret>`: the prefix
 * is the public lookup handle, the secret is stored only as a bcrypt hash.
 *
 * @dependencies
 * - crypto/rand, encoding/hex: Key material generation.
 * - golang.org/x/crypto/bcrypt: Secret hashing at rest.
 */

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyScheme = "sbk"

// cents converts whole currency units to the stored minor-unit amounts.
func cents(units int64) int64 { return units * 100 }

func centsPtr(units int64) *int64 {
	v := cents(units)
	return &v
}

// defaultRoles is the fixed four-tier hierarchy every bank starts with.
func defaultRoles(bankID uuid.UUID) []domain.Role {
	return []domain.Role{
		{ID: uuid.New(), BankID: bankID, Name: "viewer", Level: 1, MaxTransferAmount: 0},
		{ID: uuid.New(), BankID: bankID, Name: "operator", Level: 3, MaxTransferAmount: cents(50_000), CanCreateUsers: false},
		{ID: uuid.New(), BankID: bankID, Name: "manager", Level: 7, MaxTransferAmount: cents(500_000), CanApproveTransfers: true, CanCreateUsers: true},
		{ID: uuid.New(), BankID: bankID, Name: "admin", Level: 10, MaxTransferAmount: cents(10_000_000), CanApproveTransfers: true, CanCreateUsers: true, CanModifySettings: true},
	}
}

// defaultApprovalRules is the amount-tiered policy table every bank starts
// with. Boundaries are adjacent, not overlapping, but the resolver does not
// depend on that.
func defaultApprovalRules(bankID uuid.UUID) []domain.ApprovalRule {
	return []domain.ApprovalRule{
		{ID: uuid.New(), BankID: bankID, RuleName: "small_auto", MinAmount: 0, MaxAmount: centsPtr(10_000), AutoApprove: true, RequiredRoleLevel: 1},
		{ID: uuid.New(), BankID: bankID, RuleName: "medium_single_approval", MinAmount: cents(10_000) + 1, MaxAmount: centsPtr(50_000), RequiredApprovals: 1, RequiredRoleLevel: 7},
		{ID: uuid.New(), BankID: bankID, RuleName: "large_dual_approval", MinAmount: cents(50_000) + 1, MaxAmount: centsPtr(250_000), RequiredApprovals: 2, RequiredRoleLevel: 7},
		{ID: uuid.New(), BankID: bankID, RuleName: "critical_admin_approval", MinAmount: cents(250_000) + 1, MaxAmount: nil, RequiredApprovals: 2, RequiredRoleLevel: 10},
	}
}

// RegisterBank onboards a new tenant: bank row, API key, default roles and
// default approval rules. The plaintext key is returned exactly once.
func (s *Service) RegisterBank(ctx context.Context, req domain.RegisterBankRequest) (*domain.RegisterBankResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrBankNameRequired
	}

	apiKey, prefix, secret, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api key: %w", err)
	}

	bank := &domain.Bank{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Country:      strings.TrimSpace(req.Country),
		APIKeyPrefix: prefix,
	}
	if err := s.repo.CreateBank(ctx, bank, string(hash)); err != nil {
		return nil, fmt.Errorf("failed to create bank: %w", err)
	}
	if err := s.repo.CreateRoles(ctx, defaultRoles(bank.ID)); err != nil {
		return nil, fmt.Errorf("failed to seed default roles: %w", err)
	}
	if err := s.repo.CreateApprovalRules(ctx, defaultApprovalRules(bank.ID)); err != nil {
		return nil, fmt.Errorf("failed to seed default approval rules: %w", err)
	}

	log.Printf("level=info component=app op=register_bank bank_id=%s name=%q", bank.ID, bank.Name)

	return &domain.RegisterBankResponse{
		BankID:  bank.ID,
		Name:    bank.Name,
		APIKey:  apiKey,
		Message: "store this API key securely; it cannot be retrieved again",
	}, nil
}

// AuthenticateAPIKey resolves a bank from a presented API key. Any structural
// or credential failure maps to the single ErrInvalidAPIKey so callers cannot
// distinguish unknown prefixes from wrong secrets.
func (s *Service) AuthenticateAPIKey(ctx context.Context, apiKey string) (*domain.Bank, error) {
	prefix, secret, ok := splitAPIKey(apiKey)
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	bank, hash, err := s.repo.FindBankByAPIKeyPrefix(ctx, prefix)
	if err != nil {
		return nil, ErrInvalidAPIKey
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return nil, ErrInvalidAPIKey
	}
	return bank, nil
}

func generateAPIKey() (full, prefix, secret string, err error) {
	prefixBytes := make([]byte, 6)
	if _, err = rand.Read(prefixBytes); err != nil {
		return "", "", "", err
	}
	secretBytes := make([]byte, 16)
	if _, err = rand.Read(secretBytes); err != nil {
		return "", "", "", err
	}
	prefix = hex.EncodeToString(prefixBytes)
	secret = hex.EncodeToString(secretBytes)
	full = fmt.Sprintf("%s_%s_%s", apiKeyScheme, prefix, secret)
	return full, prefix, secret, nil
}

func splitAPIKey(apiKey string) (prefix, secret string, ok bool) {
	parts := strings.Split(strings.TrimSpace(apiKey), "_")
	if len(parts) != 3 || parts[0] != apiKeyScheme || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
