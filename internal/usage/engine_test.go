// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package usage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

func newTestEngine(t *testing.T, devMode bool) (*Engine, connectors.PostgresConnector) {
	t.Helper()
	db, err := connectors.NewSqliteConnector("")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entity.UsageLimits{}, &entity.UsageCountedCall{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	e := New(db, nil, commons.NewNop(), devMode)
	return e, db
}

func TestCheckPermissionDevelopmentModeBypass(t *testing.T) {
	e, _ := newTestEngine(t, true)
	d, err := e.CheckPermission(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.CanMakeCall || d.DurationCapSec != developmentCapSec {
		t.Errorf("got %+v, want permit with cap=%d", d, developmentCapSec)
	}
}

func TestCheckPermissionNewUserGetsTrial(t *testing.T) {
	e, _ := newTestEngine(t, false)
	d, err := e.CheckPermission(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.CanMakeCall || d.Source != SourceTrial || d.DurationCapSec != trialCapSec {
		t.Errorf("got %+v, want trial permit", d)
	}
}

func TestTrialExhaustionBoundary(t *testing.T) {
	e, db := newTestEngine(t, false)
	owner := uint64(7)
	ctx := context.Background()

	// Drain the trial allotment via Commit, as the Dispatcher would.
	for i := 0; i < trialLifetimeCalls; i++ {
		d, err := e.CheckPermission(ctx, owner)
		if err != nil {
			t.Fatalf("check permission %d: %v", i, err)
		}
		if !d.CanMakeCall || d.Source != SourceTrial {
			t.Fatalf("call %d: got %+v, want trial permit", i, d)
		}
		if err := e.Commit(ctx, owner, d, callID(i)); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	d, err := e.CheckPermission(ctx, owner)
	if err != nil {
		t.Fatalf("final check: %v", err)
	}
	if d.CanMakeCall {
		t.Fatalf("expected deny after trial exhausted, got %+v", d)
	}
	if d.Reason != apperr.CodeTrialExhausted {
		t.Errorf("got reason %q, want TRIAL_EXHAUSTED", d.Reason)
	}

	var row entity.UsageLimits
	if err := db.DB(ctx).Where("owner = ?", owner).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.TrialCallsRemaining != 0 {
		t.Errorf("trial-remaining = %d, want 0", row.TrialCallsRemaining)
	}
}

func TestCommitIsIdempotentPerProviderCallID(t *testing.T) {
	e, db := newTestEngine(t, false)
	owner := uint64(3)
	ctx := context.Background()

	d, err := e.CheckPermission(ctx, owner)
	if err != nil {
		t.Fatalf("check permission: %v", err)
	}
	if err := e.Commit(ctx, owner, d, "CA1"); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := e.Commit(ctx, owner, d, "CA1"); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	var row entity.UsageLimits
	if err := db.DB(ctx).Where("owner = ?", owner).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.CallsTotal != 1 {
		t.Errorf("calls-total = %d, want 1 (commit must not double-apply)", row.CallsTotal)
	}
}

func TestRecordAppliesOnceAcrossRetries(t *testing.T) {
	e, db := newTestEngine(t, false)
	owner := uint64(9)
	ctx := context.Background()

	d, err := e.CheckPermission(ctx, owner)
	if err != nil {
		t.Fatalf("check permission: %v", err)
	}
	if err := e.Commit(ctx, owner, d, "CA9"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := e.Record(ctx, owner, "CA9", 42); err != nil {
			t.Fatalf("record attempt %d: %v", i, err)
		}
	}

	var row entity.UsageLimits
	if err := db.DB(ctx).Where("owner = ?", owner).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.DurationThisWeekSec != 42 {
		t.Errorf("duration-this-week-sec = %d, want 42 (applied exactly once)", row.DurationThisWeekSec)
	}
}

func TestRecordClampsToCap(t *testing.T) {
	e, db := newTestEngine(t, false)
	owner := uint64(11)
	ctx := context.Background()

	d, err := e.CheckPermission(ctx, owner) // trial, cap=60
	if err != nil {
		t.Fatalf("check permission: %v", err)
	}
	if err := e.Commit(ctx, owner, d, "CA11"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := e.Record(ctx, owner, "CA11", 9000); err != nil {
		t.Fatalf("record: %v", err)
	}

	var row entity.UsageLimits
	if err := db.DB(ctx).Where("owner = ?", owner).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.DurationThisWeekSec != trialCapSec {
		t.Errorf("duration-this-week-sec = %d, want cap %d", row.DurationThisWeekSec, trialCapSec)
	}
}

func TestRecordWithoutCommitIsStateInconsistent(t *testing.T) {
	e, _ := newTestEngine(t, false)
	err := e.Record(context.Background(), 1, "CA-unknown", 10)
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Code != apperr.CodeStateInconsistent {
		t.Fatalf("got %v, want STATE_INCONSISTENT", err)
	}
}

func TestWeekRolloverPermitsAndResetsCounters(t *testing.T) {
	e, db := newTestEngine(t, false)
	owner := uint64(21)
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	// Exhaust trial, then move to basic tier to exercise the weekly cap.
	for i := 0; i < trialLifetimeCalls; i++ {
		d, _ := e.CheckPermission(ctx, owner)
		_ = e.Commit(ctx, owner, d, callID(100+i))
	}
	var row entity.UsageLimits
	db.DB(ctx).Where("owner = ?", owner).First(&row)
	row.Tier = entity.TierBasic
	// The upgrade starts a fresh weekly allotment; calls-this-week otherwise
	// already carries the trial calls placed earlier in the same window.
	row.CallsThisWeek = 0
	db.DB(ctx).Save(&row)

	for i := 0; i < basicWeeklyCalls; i++ {
		d, err := e.CheckPermission(ctx, owner)
		if err != nil || !d.CanMakeCall {
			t.Fatalf("basic call %d: got %+v, err %v", i, d, err)
		}
		if err := e.Commit(ctx, owner, d, callID(200+i)); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	d, _ := e.CheckPermission(ctx, owner)
	if d.CanMakeCall {
		t.Fatalf("expected weekly limit deny, got %+v", d)
	}

	// Roll forward past the week boundary: the next check should permit
	// and counters should read as reset.
	e.now = func() time.Time { return fixed.Add(8 * 24 * time.Hour) }
	d, err := e.CheckPermission(ctx, owner)
	if err != nil {
		t.Fatalf("post-rollover check: %v", err)
	}
	if !d.CanMakeCall {
		t.Fatalf("expected permit after week rollover, got %+v", d)
	}
}

// TestTrialCallCountsTowardCallsThisWeek exercises spec.md §8 end-to-end
// scenario 1: a single trial call must still advance calls-this-week,
// since invariant 1 ties that counter to the count of CallRecords for
// every user, not just basic-tier ones.
func TestTrialCallCountsTowardCallsThisWeek(t *testing.T) {
	e, db := newTestEngine(t, false)
	owner := uint64(42)
	ctx := context.Background()

	d, err := e.CheckPermission(ctx, owner)
	if err != nil {
		t.Fatalf("check permission: %v", err)
	}
	if d.Source != SourceTrial {
		t.Fatalf("got source %q, want trial", d.Source)
	}
	if err := e.Commit(ctx, owner, d, "CA1"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := e.Record(ctx, owner, "CA1", 42); err != nil {
		t.Fatalf("record: %v", err)
	}

	var row entity.UsageLimits
	if err := db.DB(ctx).Where("owner = ?", owner).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.TrialCallsRemaining != 2 {
		t.Errorf("trial-remaining = %d, want 2", row.TrialCallsRemaining)
	}
	if row.CallsThisWeek != 1 {
		t.Errorf("calls-this-week = %d, want 1", row.CallsThisWeek)
	}
	if row.CallsTotal != 1 {
		t.Errorf("calls-total = %d, want 1", row.CallsTotal)
	}
	if row.DurationThisWeekSec != 42 {
		t.Errorf("duration-this-week-sec = %d, want 42", row.DurationThisWeekSec)
	}
}

func callID(i int) string {
	return fmt.Sprintf("CA%d", i)
}
