// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/callcontext"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/metrics"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/internal/usage"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// watchdogGraceSec is added to the decided duration cap to build the
// provider's hard time_limit ceiling (spec.md §4.6, Open Question (b)):
// the provider enforces cap+5s while the in-process watchdog ends the
// bridge session at cap itself.
const watchdogGraceSec = 5

// Dispatcher is the Call Dispatcher (spec.md §4.6).
type Dispatcher struct {
	db           connectors.PostgresConnector
	usage        *usage.Engine
	scenarios    scenario.CustomScenarioLoader
	contexts     *callcontext.Store
	provider     Provider
	logger       commons.Logger
	publicURL    string
	systemNumber string
	now          func() time.Time
	metrics      *metrics.Registry
}

// SetMetrics attaches a metrics.Registry; nil leaves Dispatch unmetered.
func (d *Dispatcher) SetMetrics(m *metrics.Registry) {
	d.metrics = m
}

// New builds a Dispatcher.
func New(db connectors.PostgresConnector, usageEngine *usage.Engine, scenarios scenario.CustomScenarioLoader, contexts *callcontext.Store, provider Provider, logger commons.Logger, publicURL, systemNumber string) *Dispatcher {
	return &Dispatcher{
		db:           db,
		usage:        usageEngine,
		scenarios:    scenarios,
		contexts:     contexts,
		provider:     provider,
		logger:       logger,
		publicURL:    publicURL,
		systemNumber: systemNumber,
		now:          time.Now,
	}
}

// Dispatch places the call. decision must already be a permit from
// usage.Engine.CheckPermission — Dispatch does not re-check permission
// (the scheduler, which dispatches on a delay, re-checks before calling
// in); it is the sole place counters get incremented (spec.md §4.6).
func (d *Dispatcher) Dispatch(ctx context.Context, caller scenario.Caller, e164, scenarioRef string, decision usage.Decision) (*entity.CallRecord, error) {
	if _, err := scenario.Resolve(d.scenarios, scenarioRef, caller); err != nil {
		d.metrics.RecordDispatchOutcome("scenario_resolve_failed")
		return nil, err
	}

	from, err := d.chooseCallerID(ctx, caller.ID)
	if err != nil {
		d.metrics.RecordDispatchOutcome("no_caller_id")
		return nil, err
	}

	isCustom := strings.HasPrefix(scenarioRef, "custom_")
	params := CallParams{
		To:             e164,
		From:           from,
		WebhookURL:     BuildWebhookURL(d.publicURL, scenarioRef, isCustom),
		StatusCallback: BuildStatusCallbackURL(d.publicURL),
		TimeLimitSec:   decision.DurationCapSec + watchdogGraceSec,
		Record:         true,
	}

	providerCallID, err := d.provider.CreateCall(ctx, params)
	if err != nil {
		d.logger.Warnw("dispatch failed", "owner", caller.ID, "e164", e164, "scenario", scenarioRef, "error", err)
		d.metrics.RecordDispatchOutcome("telephony_rejected")
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeDispatchFailed, "telephony provider rejected the call", err)
	}

	now := d.now()
	if err := d.usage.Commit(ctx, caller.ID, decision, providerCallID); err != nil {
		d.metrics.RecordDispatchOutcome("commit_failed")
		return nil, err
	}

	record := entity.CallRecord{
		Owner:          caller.ID,
		ProviderCallID: providerCallID,
		E164:           e164,
		ScenarioRef:    scenarioRef,
		Status:         entity.CallStatusInitiated,
		StartedAt:      now,
	}
	if err := d.db.DB(ctx).Create(&record).Error; err != nil {
		d.metrics.RecordDispatchOutcome("persist_failed")
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeDispatchFailed, "persist call record", err)
	}

	callCtx := entity.CallContext{
		ContextID:      providerCallID,
		Owner:          caller.ID,
		E164:           e164,
		ScenarioRef:    scenarioRef,
		DurationCapSec: decision.DurationCapSec,
		Source:         string(decision.Source),
	}
	if err := d.contexts.Queue(ctx, callCtx); err != nil {
		d.metrics.RecordDispatchOutcome("persist_failed")
		return nil, err
	}

	d.metrics.RecordDispatchOutcome("success")
	return &record, nil
}

// chooseCallerID picks the first active, voice-capable UserPhoneNumber for
// owner, preferring the primary number; falls back to the system number
// (spec.md §4.6 step 1).
func (d *Dispatcher) chooseCallerID(ctx context.Context, owner uint64) (string, error) {
	var numbers []entity.UserPhoneNumber
	err := d.db.DB(ctx).
		Where("owner = ? AND active = ? AND voice_capable = ?", owner, true, true).
		Order("is_primary DESC, id ASC").
		Limit(1).
		Find(&numbers).Error
	if err != nil {
		return "", apperr.Wrap(apperr.KindExternal, apperr.CodeDispatchFailed, "load caller-id candidates", err)
	}
	if len(numbers) > 0 {
		return numbers[0].E164, nil
	}
	if d.systemNumber == "" {
		return "", apperr.New(apperr.KindInternal, apperr.CodeStateInconsistent, "no caller-id available: no user number and no system number configured")
	}
	return d.systemNumber, nil
}
