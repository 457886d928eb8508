// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// UsageCountedCall is the persisted idempotency ledger backing invariant 4
// of spec.md §8: "no two increments of UsageLimits counters occur for the
// same provider-call-id." The row is created once, at Commit (dispatch
// confirmation) time, with RecordedAt nil; Record (the post-call webhook
// path) fills in RecordedAt and SecondsApplied exactly once, so a webhook
// retried N times only ever applies duration once.
type UsageCountedCall struct {
	ProviderCallID string `gorm:"primaryKey"`
	Owner          uint64 `gorm:"index;not null"`
	Source         string `gorm:"not null"`
	DurationCapSec int    `gorm:"not null"`
	SecondsApplied int    `gorm:"not null;default:0"`
	CountedAt      time.Time
	RecordedAt     *time.Time
}
