// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package usage

import (
	"testing"
	"time"

	"github.com/fluentcall/voicecore/internal/entity"
)

func TestRollWindowsNoOpBeforeBoundary(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	row := entity.UsageLimits{WeekAnchor: anchor, MonthAnchor: anchor, CallsThisWeek: 3, CallsThisMonth: 10}
	rollWindows(&row, anchor.Add(6*24*time.Hour))
	if row.CallsThisWeek != 3 || !row.WeekAnchor.Equal(anchor) {
		t.Errorf("window rolled early: %+v", row)
	}
}

func TestRollWindowsAdvancesOnBoundary(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	row := entity.UsageLimits{WeekAnchor: anchor, MonthAnchor: anchor, CallsThisWeek: 5, DurationThisWeekSec: 300}
	now := anchor.Add(8 * 24 * time.Hour)
	rollWindows(&row, now)
	if row.CallsThisWeek != 0 || row.DurationThisWeekSec != 0 {
		t.Errorf("counters not reset: %+v", row)
	}
	if !row.WeekAnchor.Equal(anchor.Add(weekWindow)) {
		t.Errorf("anchor advanced to %v, want %v", row.WeekAnchor, anchor.Add(weekWindow))
	}
}

func TestRollWindowsAdvancesByWholeMultiples(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	row := entity.UsageLimits{WeekAnchor: anchor, MonthAnchor: anchor}
	now := anchor.Add(22 * 24 * time.Hour) // three full weeks elapsed
	rollWindows(&row, now)
	wantAnchor := anchor.Add(3 * weekWindow)
	if !row.WeekAnchor.Equal(wantAnchor) {
		t.Errorf("anchor = %v, want %v", row.WeekAnchor, wantAnchor)
	}
}

func TestRollWindowsClearsExpiredAddon(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expired := anchor.Add(time.Hour)
	row := entity.UsageLimits{WeekAnchor: anchor, MonthAnchor: anchor, AddonCalls: 5, AddonExpires: &expired}
	rollWindows(&row, anchor.Add(2*time.Hour))
	if row.AddonCalls != 0 || row.AddonExpires != nil {
		t.Errorf("addon not cleared: %+v", row)
	}
}
