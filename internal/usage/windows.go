// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package usage

import (
	"time"

	"github.com/fluentcall/voicecore/internal/entity"
)

const (
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// rollWindows advances row's week/month anchors by whole window multiples
// and zeroes the corresponding counters, and clears an expired addon
// grant. It mutates row in place and is pure otherwise — callers decide
// whether the result gets persisted (Commit/Record do; CheckPermission's
// read-only path does not, per spec.md §4.3's "lazy window" rule).
func rollWindows(row *entity.UsageLimits, now time.Time) {
	if row.WeekAnchor.IsZero() {
		row.WeekAnchor = now
	}
	if row.MonthAnchor.IsZero() {
		row.MonthAnchor = now
	}

	if elapsed := now.Sub(row.WeekAnchor); elapsed >= weekWindow {
		multiples := elapsed / weekWindow
		row.WeekAnchor = row.WeekAnchor.Add(multiples * weekWindow)
		row.CallsThisWeek = 0
		row.DurationThisWeekSec = 0
	}
	if elapsed := now.Sub(row.MonthAnchor); elapsed >= monthWindow {
		multiples := elapsed / monthWindow
		row.MonthAnchor = row.MonthAnchor.Add(multiples * monthWindow)
		row.CallsThisMonth = 0
		row.DurationThisMonthSec = 0
	}
	if row.AddonExpires != nil && !row.AddonExpires.After(now) {
		row.AddonCalls = 0
		row.AddonExpires = nil
	}
}
