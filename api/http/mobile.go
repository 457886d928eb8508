// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/dispatch"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/internal/usage"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// MobileAPI backs the /mobile/* group: the consumer app's pre-call check,
// the make-call and schedule-call actions, and the usage snapshot.
type MobileAPI struct {
	usage      *usage.Engine
	dispatcher *dispatch.Dispatcher
	db         connectors.PostgresConnector
	logger     commons.Logger
}

// NewMobileAPI builds a MobileAPI.
func NewMobileAPI(usageEngine *usage.Engine, dispatcher *dispatch.Dispatcher, db connectors.PostgresConnector, logger commons.Logger) *MobileAPI {
	return &MobileAPI{usage: usageEngine, dispatcher: dispatcher, db: db, logger: logger}
}

// decisionResponse is the wire shape of a usage.Decision: can_make_call
// plus source/duration_limit on a permit, or reason/upgrade_options on a
// deny, kept as its own type so the usage package's domain struct isn't
// forced to carry JSON tags for an API concern.
type decisionResponse struct {
	CanMakeCall    bool                    `json:"can_make_call"`
	Source         usage.Source            `json:"source,omitempty"`
	DurationLimit  int                     `json:"duration_limit,omitempty"`
	Reason         apperr.Code             `json:"reason,omitempty"`
	UpgradeOptions []apperr.UpgradeOption  `json:"upgrade_options,omitempty"`
}

func toDecisionResponse(d usage.Decision) decisionResponse {
	return decisionResponse{
		CanMakeCall:    d.CanMakeCall,
		Source:         d.Source,
		DurationLimit:  d.DurationCapSec,
		Reason:         d.Reason,
		UpgradeOptions: d.UpgradeOptions,
	}
}

// CheckCallPermission reports the current decision without placing a call
// or mutating any counter.
func (m *MobileAPI) CheckCallPermission(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	decision, err := m.usage.CheckPermission(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDecisionResponse(decision))
}

type makeCallRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,e164"`
	Scenario    string `json:"scenario" binding:"required"`
}

// MakeCall checks permission, dispatches on a permit, and returns the
// {call_sid, status, duration_limit, usage_stats} envelope spec.md §6
// describes; a deny is rendered as a 402 with the upgrade-options table.
func (m *MobileAPI) MakeCall(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	var req makeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, apperr.CodeBadParameters, "invalid request body", err))
		return
	}

	decision, err := m.usage.CheckPermission(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}
	if !decision.CanMakeCall {
		writeError(c, apperr.New(apperr.KindPolicy, decision.Reason, "insufficient permission to place a call").WithUpgrade(decision.UpgradeOptions...))
		return
	}

	caller := scenario.Caller{ID: owner}
	record, err := m.dispatcher.Dispatch(c.Request.Context(), caller, req.PhoneNumber, req.Scenario, decision)
	if err != nil {
		writeError(c, err)
		return
	}

	stats, err := m.usage.GetStats(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call_sid":       record.ProviderCallID,
		"status":         "initiated",
		"duration_limit": decision.DurationCapSec,
		"usage_stats":    toStatsResponse(stats),
	})
}

type scheduleCallRequest struct {
	PhoneNumber   string `json:"phone_number" binding:"required,e164"`
	Scenario      string `json:"scenario" binding:"required"`
	ScheduledTime string `json:"scheduled_time" binding:"required"`
}

// ScheduleCall creates a ScheduledCall row. Permission is never checked
// here — only at the Scheduler's tick, per spec.md §4.4 — so creation
// cannot fail on usage grounds.
func (m *MobileAPI) ScheduleCall(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	var req scheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, apperr.CodeBadParameters, "invalid request body", err))
		return
	}

	dueAt, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		writeError(c, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "scheduled_time must be ISO-8601"))
		return
	}

	row := entity.ScheduledCall{
		Owner:       owner,
		E164:        req.PhoneNumber,
		ScenarioRef: req.Scenario,
		DueAt:       dueAt,
	}
	if err := m.db.DB(c.Request.Context()).Create(&row).Error; err != nil {
		writeError(c, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "persist scheduled call", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"scheduled_call_id": row.ID,
		"due_at":            row.DueAt.Format(time.RFC3339),
	})
}

// statsResponse is usage.Stats's wire shape, kept local for the same
// reason decisionResponse is.
type statsResponse struct {
	Tier                 entity.Tier `json:"tier"`
	TrialCallsRemaining  int         `json:"trial_calls_remaining"`
	CallsThisWeek        int         `json:"calls_this_week"`
	CallsThisMonth       int         `json:"calls_this_month"`
	CallsTotal           int         `json:"calls_total"`
	DurationThisWeekSec  int         `json:"duration_this_week_sec"`
	DurationThisMonthSec int         `json:"duration_this_month_sec"`
	AddonCallsRemaining  int         `json:"addon_calls_remaining"`
}

func toStatsResponse(s usage.Stats) statsResponse {
	return statsResponse{
		Tier:                 s.Tier,
		TrialCallsRemaining:  s.TrialCallsRemaining,
		CallsThisWeek:        s.CallsThisWeek,
		CallsThisMonth:       s.CallsThisMonth,
		CallsTotal:           s.CallsTotal,
		DurationThisWeekSec:  s.DurationThisWeekSec,
		DurationThisMonthSec: s.DurationThisMonthSec,
		AddonCallsRemaining:  s.AddonCallsRemaining,
	}
}

// UsageStats returns owner's current usage snapshot, windows rolled
// lazily the same way CheckPermission rolls them (spec.md §4.3's
// "lazy roll, write-only persists" rule).
func (m *MobileAPI) UsageStats(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	stats, err := m.usage.GetStats(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatsResponse(stats))
}
