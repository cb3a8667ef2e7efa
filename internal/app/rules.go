/**
 * @description
 * Rule resolution for the approval workflow. Given a bank and an amount, the
 * resolver selects the single applicable approval rule, or falls back to a
 * synthetic auto-approve default when no configured rule matches.
 *
 * The fallback is a deliberate safety default: a transfer is never blocked
 * solely because the rule table has a gap.
 */

package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/nisr16/stablecoin-banking-api/internal/domain"
)

// ResolveRule selects the applicable rule for an amount from a bank's rule
// set. Among rules whose range contains the amount, the one with the largest
// min_amount wins (the most specific floor). When nothing matches, the
// synthetic default rule is returned with IsDefault set.
//
// The function is total and deterministic: it never fails, and equal inputs
// always yield the same rule.
func ResolveRule(rules []domain.ApprovalRule, amount int64, lowestRoleLevel int) domain.ApprovalRule {
	var best *domain.ApprovalRule
	for i := range rules {
		rule := &rules[i]
		if !rule.Matches(amount) {
			continue
		}
		if best == nil || rule.MinAmount > best.MinAmount {
			best = rule
		}
	}
	if best == nil {
		return domain.DefaultRule(lowestRoleLevel)
	}
	return *best
}

// resolveRule loads a bank's rule table and role set and resolves the rule for
// an amount. The lowest defined role level seeds the fallback rule.
func (s *Service) resolveRule(ctx context.Context, bankID uuid.UUID, amount int64) (domain.ApprovalRule, error) {
	rules, err := s.repo.ListApprovalRules(ctx, bankID)
	if err != nil {
		return domain.ApprovalRule{}, err
	}

	lowestLevel := 1
	roles, err := s.repo.ListRoles(ctx, bankID)
	if err != nil {
		return domain.ApprovalRule{}, err
	}
	for i, role := range roles {
		if i == 0 || role.Level < lowestLevel {
			lowestLevel = role.Level
		}
	}

	return ResolveRule(rules, amount, lowestLevel), nil
}
