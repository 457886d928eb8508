// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// Tier is the subscription tier driving Usage Engine caps (spec.md §4.3).
type Tier string

const (
	TierTrial     Tier = "trial"
	TierBasic     Tier = "basic"
	TierPremium   Tier = "premium"
	TierCancelled Tier = "cancelled"
)

// SubscriptionStatus mirrors the payment provider's view of the
// subscription; the payment provider itself is out of core (spec.md §1).
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusPastDue   SubscriptionStatus = "past_due"
	SubStatusCancelled SubscriptionStatus = "cancelled"
	SubStatusNone      SubscriptionStatus = "none"
)

// UsageLimits is the one-per-User row the Usage Engine reads and mutates.
// WeekAnchor/MonthAnchor define rolling windows keyed to the user, not the
// calendar (spec.md §3).
type UsageLimits struct {
	Owner uint64 `gorm:"primaryKey"`

	Tier                Tier `gorm:"not null;default:trial"`
	TrialCallsRemaining int  `gorm:"not null;default:3"`

	WeekAnchor  time.Time `gorm:"not null"`
	MonthAnchor time.Time `gorm:"not null"`

	CallsThisWeek  int `gorm:"not null;default:0"`
	CallsThisMonth int `gorm:"not null;default:0"`
	CallsTotal     int `gorm:"not null;default:0"`

	DurationThisWeekSec  int `gorm:"not null;default:0"`
	DurationThisMonthSec int `gorm:"not null;default:0"`

	AddonCalls    int        `gorm:"not null;default:0"`
	AddonExpires  *time.Time

	SubscriptionStatus SubscriptionStatus `gorm:"not null;default:none"`
	SubEnd             *time.Time

	UpdatedAt time.Time
}
