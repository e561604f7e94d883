// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AccessKind classifies an access decision.
type AccessKind string

const (
	AccessFull            AccessKind = "full"
	AccessUpgradeRequired AccessKind = "upgrade_required"
	AccessLimitExceeded   AccessKind = "limit_exceeded"
)

// Usage counts the distinct items a user viewed in the current UTC day and
// calendar month.
type Usage struct {
	Today     int         `json:"today"`
	ThisMonth int         `json:"this_month"`
	Limits    UsageLimits `json:"limits"`
}

// UpgradeOffer is a tier that would lift a denial.
type UpgradeOffer struct {
	Tier   Tier        `json:"tier"`
	Limits UsageLimits `json:"limits"`
}

// AccessDecision answers whether a user may open an item now.
type AccessDecision struct {
	UserID   string         `json:"user_id"`
	ItemID   string         `json:"item_id"`
	Allowed  bool           `json:"can_access"`
	Access   AccessKind     `json:"access_type"`
	Reason   string         `json:"reason,omitempty"`
	UserTier Tier           `json:"user_tier"`
	ItemTier Tier           `json:"item_tier"`
	Usage    *Usage         `json:"usage,omitempty"`
	Upgrades []UpgradeOffer `json:"upgrade_suggestions,omitempty"`
}

// CheckAccess decides whether userID may open itemID. Items gated above the
// user's tier require an upgrade. Otherwise the tier's view caps apply, where
// an item already viewed this month never counts against them. A failed usage
// lookup grants access.
func (s *Service) CheckAccess(ctx context.Context, userID, itemID string) (*AccessDecision, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	if err := validateIdentifier("item_id", itemID); err != nil {
		return nil, err
	}

	deps := &s.deps.Engine.deps
	item, err := deps.Items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
		}
		return nil, err
	}
	if item.Status != StatusPublished {
		return nil, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}

	tier, err := deps.Entitlements.TierOf(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("entitlement lookup: %w", err)
	}

	d := &AccessDecision{
		UserID:   userID,
		ItemID:   itemID,
		UserTier: tier,
		ItemTier: item.AccessTier,
	}
	if !tier.Allows(item.AccessTier) {
		d.Access = AccessUpgradeRequired
		d.Reason = fmt.Sprintf("item requires the %s tier", item.AccessTier)
		d.Upgrades = s.upgrades(tier, item.AccessTier)
		return d, nil
	}

	access := &s.deps.Engine.config.Access
	limits := access.For(tier)
	d.Allowed, d.Access = true, AccessFull
	if limits.Unlimited() {
		return d, nil
	}

	usage, seen, err := s.usage(ctx, userID, itemID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("usage lookup failed, granting access")
		return d, nil
	}
	usage.Limits = limits
	d.Usage = usage
	if seen {
		return d, nil
	}

	switch {
	case limits.Daily > 0 && usage.Today >= limits.Daily:
		d.Reason = fmt.Sprintf("daily limit of %d items reached", limits.Daily)
	case limits.Monthly > 0 && usage.ThisMonth >= limits.Monthly:
		d.Reason = fmt.Sprintf("monthly limit of %d items reached", limits.Monthly)
	default:
		return d, nil
	}
	d.Allowed, d.Access = false, AccessLimitExceeded
	d.Upgrades = s.upgrades(tier, item.AccessTier)
	return d, nil
}

// usage counts distinct items viewed since the start of the UTC month and
// reports whether itemID is among them.
func (s *Service) usage(ctx context.Context, userID, itemID string) (*Usage, bool, error) {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	evs, err := s.deps.History.History(ctx, userID, HistoryFilter{
		Actions: []Action{ActionView},
		Since:   month,
	})
	if err != nil {
		return nil, false, err
	}

	monthly := make(map[string]struct{})
	daily := make(map[string]struct{})
	for i := range evs {
		monthly[evs[i].ItemID] = struct{}{}
		if !evs[i].Timestamp.Before(day) {
			daily[evs[i].ItemID] = struct{}{}
		}
	}
	_, seen := monthly[itemID]
	return &Usage{Today: len(daily), ThisMonth: len(monthly)}, seen, nil
}

// upgrades lists the tiers above from that unlock items gated at need.
func (s *Service) upgrades(from, need Tier) []UpgradeOffer {
	access := &s.deps.Engine.config.Access
	var out []UpgradeOffer
	for _, t := range []Tier{TierPremium, TierEnterprise} {
		if t > from && t.Allows(need) {
			out = append(out, UpgradeOffer{Tier: t, Limits: access.For(t)})
		}
	}
	return out
}
