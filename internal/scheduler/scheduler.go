// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package scheduler implements the Scheduler (spec.md §4.4): a single
// serial loop that dispatches due ScheduledCall rows, re-checking
// permission at tick time rather than at creation time.
package scheduler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/fluentcall/voicecore/internal/dispatch"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/metrics"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/internal/usage"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// dispatchTimeout bounds one scheduled dispatch attempt end to end
// (spec.md §5: "scheduler dispatch total 15 s").
const dispatchTimeout = 15 * time.Second

// Scheduler is the background tick loop driving scheduled calls.
type Scheduler struct {
	db         connectors.PostgresConnector
	usage      *usage.Engine
	dispatcher *dispatch.Dispatcher
	logger     commons.Logger
	interval   time.Duration
	now        func() time.Time
	metrics    *metrics.Registry
}

// SetMetrics attaches a metrics.Registry; nil leaves tick() unmetered.
func (s *Scheduler) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// New builds a Scheduler. interval is the tick period (config
// app.scheduler_interval, default 60s).
func New(db connectors.PostgresConnector, usageEngine *usage.Engine, dispatcher *dispatch.Dispatcher, logger commons.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		db:         db,
		usage:      usageEngine,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
		now:        time.Now,
	}
}

// Run ticks until ctx is cancelled. Each tick is independent: a panic or
// error dispatching one row (dispatchOne recovers panics) never stops the
// loop or affects other rows
// (spec.md §4.4).
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick dispatches every due row, earliest due-at first, ties broken by
// id, serialized (no parallelism within a tick, spec.md §4.4).
func (s *Scheduler) tick(ctx context.Context) {
	tickStart := s.now()
	var due []entity.ScheduledCall
	err := s.db.DB(ctx).
		Where("due_at <= ?", tickStart).
		Order("due_at ASC, id ASC").
		Find(&due).Error
	if err != nil {
		s.logger.Errorf("scheduler: load due calls: %v", err)
		return
	}

	for _, row := range due {
		s.dispatchOne(ctx, row)
	}

	s.metrics.ObserveSchedulerTick(s.now().Sub(tickStart).Seconds(), len(due))
}

func (s *Scheduler) dispatchOne(ctx context.Context, row entity.ScheduledCall) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("scheduler: panic dispatching scheduled call %d: %v", row.ID, r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	if err := s.db.DB(ctx).Delete(&entity.ScheduledCall{}, "id = ?", row.ID).Error; err != nil {
		s.logger.Errorf("scheduler: remove scheduled call %d: %v", row.ID, err)
		return
	}

	caller := scenario.Caller{ID: row.Owner}
	decision, err := s.usage.CheckPermission(ctx, row.Owner)
	if err != nil {
		s.logger.Warnw("scheduler: permission check failed", "scheduled_call_id", row.ID, "owner", row.Owner, "error", err)
		s.writeFailedRecord(ctx, row)
		return
	}
	if !decision.CanMakeCall {
		// Open Question (c): a scheduled call whose owner has since lost
		// permission is silently dropped, not dispatched.
		s.logger.Infof("scheduler: owner %d lost permission (reason %s), dropping scheduled call %d", row.Owner, decision.Reason, row.ID)
		s.writeFailedRecord(ctx, row)
		return
	}

	if _, err := s.dispatcher.Dispatch(ctx, caller, row.E164, row.ScenarioRef, decision); err != nil {
		s.logger.Warnw("scheduler: dispatch failed", "scheduled_call_id", row.ID, "owner", row.Owner, "error", err)
		s.writeFailedRecord(ctx, row)
		return
	}
}

func (s *Scheduler) writeFailedRecord(ctx context.Context, row entity.ScheduledCall) {
	record := entity.CallRecord{
		Owner:          row.Owner,
		ProviderCallID: failedProviderID(row),
		E164:           row.E164,
		ScenarioRef:    row.ScenarioRef,
		Status:         entity.CallStatusFailed,
		StartedAt:      s.now(),
	}
	if err := s.db.DB(ctx).Create(&record).Error; err != nil && !isDuplicateKey(err) {
		s.logger.Errorf("scheduler: write failed call record for scheduled call %d: %v", row.ID, err)
	}
}

// failedProviderID synthesizes a unique id for a CallRecord that never
// reached the provider, since ProviderCallID is uniquely indexed.
func failedProviderID(row entity.ScheduledCall) string {
	return "scheduled-failed-" + row.DueAt.Format(time.RFC3339Nano) + "-" + strconv.FormatUint(row.ID, 10)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
