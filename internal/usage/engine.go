// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package usage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/metrics"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// Engine is the Usage & Permission Engine (spec.md §4.3).
type Engine struct {
	db              connectors.PostgresConnector
	logger          commons.Logger
	locker          *userLocker
	developmentMode bool
	now             func() time.Time
	metrics         *metrics.Registry
}

// New builds an Engine. redis may be nil, in which case per-user
// serialization falls back to an in-process mutex (correct for a single
// replica). developmentMode mirrors config.AppSection.DevelopmentMode.
func New(db connectors.PostgresConnector, redis connectors.RedisConnector, logger commons.Logger, developmentMode bool) *Engine {
	return &Engine{
		db:              db,
		logger:          logger,
		locker:          newUserLocker(redis),
		developmentMode: developmentMode,
		now:             time.Now,
	}
}

// SetMetrics attaches a metrics.Registry; nil (the zero value) leaves
// CheckPermission unmetered, which is what every existing test does.
func (e *Engine) SetMetrics(m *metrics.Registry) {
	e.metrics = m
}

// CheckPermission evaluates the pre-call decision for owner, without
// changing any persisted counter (spec.md §4.3's "pre-call mutation is
// deferred"); the only write is creating owner's default UsageLimits row
// on first access. Window rolls computed here are lazy: they inform the
// decision but are not saved; Commit re-rolls and persists.
func (e *Engine) CheckPermission(ctx context.Context, owner uint64) (Decision, error) {
	if e.developmentMode {
		decision := permit(SourceBasic, developmentCapSec)
		e.metrics.RecordUsageDecision(decisionReasonLabel(decision))
		return decision, nil
	}

	row, err := e.loadOrDefault(ctx, owner)
	if err != nil {
		return Decision{}, err
	}
	rollWindows(&row, e.now())
	decision := evaluate(row)
	e.metrics.RecordUsageDecision(decisionReasonLabel(decision))
	return decision, nil
}

// decisionReasonLabel is the metric label for a Decision: "ok" for a
// permit (reason codes are only assigned on deny), the deny reason code
// otherwise.
func decisionReasonLabel(d Decision) string {
	if d.CanMakeCall {
		return "ok"
	}
	return string(d.Reason)
}

// evaluate implements spec.md §4.3's seven-step decision order against an
// already window-rolled row.
func evaluate(row entity.UsageLimits) Decision {
	if row.Tier == entity.TierTrial && row.TrialCallsRemaining > 0 {
		return permit(SourceTrial, trialCapSec)
	}
	if row.Tier == entity.TierBasic && row.CallsThisWeek < basicWeeklyCalls {
		return permit(SourceBasic, basicCapSec)
	}
	if row.Tier == entity.TierPremium && row.CallsThisMonth < premiumMonthlyCalls {
		return permit(SourcePremium, premiumCapSec)
	}
	if row.AddonCalls > 0 {
		cap := basicCapSec
		switch row.Tier {
		case entity.TierPremium:
			cap = premiumCapSec
		}
		return permit(SourceAddon, cap)
	}

	if row.Tier == entity.TierTrial {
		return deny(apperr.CodeTrialExhausted)
	}
	if row.Tier == entity.TierBasic {
		return deny(apperr.CodeWeeklyLimit)
	}
	if row.Tier == entity.TierPremium {
		return deny(apperr.CodeMonthlyLimit)
	}
	return deny(apperr.CodeSubscriptionReq)
}

// Commit applies the call-count side of decision for owner, keyed by
// providerCallID for idempotency (invariant 4, spec.md §8). The
// Dispatcher is the sole caller (spec.md §4.6); it is invoked once the
// provider has confirmed the call was actually created.
func (e *Engine) Commit(ctx context.Context, owner uint64, decision Decision, providerCallID string) error {
	return e.locker.withUserLock(ctx, owner, func() error {
		return e.db.DB(ctx).Transaction(func(tx *gorm.DB) error {
			var ledger entity.UsageCountedCall
			err := tx.Where("provider_call_id = ?", providerCallID).First(&ledger).Error
			if err == nil {
				return nil // already committed for this call
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load usage ledger", err)
			}

			row, err := e.loadOrDefaultTx(tx, owner)
			if err != nil {
				return err
			}
			now := e.now()
			rollWindows(&row, now)

			switch decision.Source {
			case SourceTrial:
				if row.TrialCallsRemaining > 0 {
					row.TrialCallsRemaining--
				}
			case SourcePremium:
				row.CallsThisMonth++
			case SourceAddon:
				if row.AddonCalls > 0 {
					row.AddonCalls--
				}
			}
			// calls-this-week tracks every dispatched call regardless of
			// source (invariant 1, spec.md §8 scenario 1) — only the
			// tier-specific counters above are gated by source.
			row.CallsThisWeek++
			row.CallsTotal++
			row.UpdatedAt = now

			if err := tx.Save(&row).Error; err != nil {
				return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "save usage limits", err)
			}

			ledger = entity.UsageCountedCall{
				ProviderCallID: providerCallID,
				Owner:          owner,
				Source:         string(decision.Source),
				DurationCapSec: decision.DurationCapSec,
				CountedAt:      now,
			}
			if err := tx.Create(&ledger).Error; err != nil {
				return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "create usage ledger", err)
			}
			return nil
		})
	})
}

// Record applies the post-call duration side, keyed by the same
// providerCallID. It is idempotent: a webhook delivered N times only
// applies duration once (spec.md §8, round-trip property and scenario 6).
// actualSeconds is clamped to the cap recorded at Commit time.
func (e *Engine) Record(ctx context.Context, owner uint64, providerCallID string, actualSeconds int) error {
	return e.locker.withUserLock(ctx, owner, func() error {
		return e.db.DB(ctx).Transaction(func(tx *gorm.DB) error {
			var ledger entity.UsageCountedCall
			err := tx.Where("provider_call_id = ?", providerCallID).First(&ledger).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindInternal, apperr.CodeStateInconsistent, "usage ledger missing for provider call id")
			}
			if err != nil {
				return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load usage ledger", err)
			}
			if ledger.RecordedAt != nil {
				return nil // already recorded
			}

			applied := actualSeconds
			if ledger.DurationCapSec > 0 && applied > ledger.DurationCapSec {
				applied = ledger.DurationCapSec
			}
			if applied < 0 {
				applied = 0
			}

			row, err := e.loadOrDefaultTx(tx, owner)
			if err != nil {
				return err
			}
			now := e.now()
			rollWindows(&row, now)

			switch Source(ledger.Source) {
			case SourceBasic:
				row.DurationThisWeekSec += applied
			case SourcePremium:
				row.DurationThisMonthSec += applied
			case SourceTrial, SourceAddon:
				row.DurationThisWeekSec += applied
			}
			row.UpdatedAt = now
			if err := tx.Save(&row).Error; err != nil {
				return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "save usage limits", err)
			}

			ledger.SecondsApplied = applied
			ledger.RecordedAt = &now
			if err := tx.Save(&ledger).Error; err != nil {
				return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "save usage ledger", err)
			}
			return nil
		})
	})
}

// Stats is the read-only snapshot behind GET /mobile/usage-stats. Like
// CheckPermission, window rolls are computed lazily and never persisted.
type Stats struct {
	Tier                 entity.Tier
	TrialCallsRemaining  int
	CallsThisWeek        int
	CallsThisMonth       int
	CallsTotal           int
	DurationThisWeekSec  int
	DurationThisMonthSec int
	AddonCallsRemaining  int
}

// GetStats returns owner's current usage snapshot.
func (e *Engine) GetStats(ctx context.Context, owner uint64) (Stats, error) {
	row, err := e.loadOrDefault(ctx, owner)
	if err != nil {
		return Stats{}, err
	}
	rollWindows(&row, e.now())
	return Stats{
		Tier:                 row.Tier,
		TrialCallsRemaining:  row.TrialCallsRemaining,
		CallsThisWeek:        row.CallsThisWeek,
		CallsThisMonth:       row.CallsThisMonth,
		CallsTotal:           row.CallsTotal,
		DurationThisWeekSec:  row.DurationThisWeekSec,
		DurationThisMonthSec: row.DurationThisMonthSec,
		AddonCallsRemaining:  row.AddonCalls,
	}, nil
}

func (e *Engine) loadOrDefault(ctx context.Context, owner uint64) (entity.UsageLimits, error) {
	return e.loadOrDefaultTx(e.db.DB(ctx), owner)
}

func (e *Engine) loadOrDefaultTx(tx *gorm.DB, owner uint64) (entity.UsageLimits, error) {
	var row entity.UsageLimits
	err := tx.Where("owner = ?", owner).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := e.now()
		row = entity.UsageLimits{
			Owner:               owner,
			Tier:                entity.TierTrial,
			TrialCallsRemaining: trialLifetimeCalls,
			WeekAnchor:          now,
			MonthAnchor:         now,
			SubscriptionStatus:  entity.SubStatusNone,
			UpdatedAt:           now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return entity.UsageLimits{}, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "create usage limits", err)
		}
		return row, nil
	}
	if err != nil {
		return entity.UsageLimits{}, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load usage limits", err)
	}
	return row, nil
}
