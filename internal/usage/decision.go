// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package usage implements the Usage & Permission Engine (spec.md §4.3):
// the tier table, the pre-call permission check, and the post-call
// counter bookkeeping. Counter increments happen only at two points —
// dispatch confirmation (Commit) and the post-call webhook (Record) —
// never at permission-check time, per spec.md §9's design note.
package usage

import "github.com/fluentcall/voicecore/internal/apperr"

// Source identifies which bucket a call's counters are debited against.
type Source string

const (
	SourceTrial   Source = "trial"
	SourceBasic   Source = "basic"
	SourcePremium Source = "premium"
	SourceAddon   Source = "addon"
)

// Tier caps, per spec.md §4.3's table.
const (
	trialLifetimeCalls = 3
	trialCapSec        = 60
	basicWeeklyCalls   = 5
	basicCapSec        = 60
	premiumMonthlyCalls = 30
	premiumCapSec       = 120
	developmentCapSec   = 300
)

// Decision is the outcome of CheckPermission: either a permit carrying the
// source to debit and the duration cap, or a deny carrying a reason code
// and the upgrade-options table.
type Decision struct {
	CanMakeCall    bool
	Source         Source
	DurationCapSec int

	Reason         apperr.Code
	UpgradeOptions []apperr.UpgradeOption
}

// upgradeTable is the tiered pricing shown on every policy deny (spec.md
// §6, end-to-end scenario 2).
var upgradeTable = []apperr.UpgradeOption{
	{Plan: "basic", Price: "$4.99", Calls: "5/week", ProductID: "speech_assistant_basic_weekly"},
	{Plan: "premium", Price: "$25.00", Calls: "30/month", ProductID: "speech_assistant_premium_monthly"},
}

func deny(reason apperr.Code) Decision {
	return Decision{CanMakeCall: false, Reason: reason, UpgradeOptions: upgradeTable}
}

func permit(source Source, capSec int) Decision {
	return Decision{CanMakeCall: true, Source: source, DurationCapSec: capSec}
}
