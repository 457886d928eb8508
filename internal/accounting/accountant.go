// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package accounting

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/callcontext"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/usage"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// acceptedStatuses are the only provider CallStatus values the webhook
// acts on (spec.md §4.7); anything else (e.g. "ringing", "in-progress")
// is dropped.
var acceptedStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"no-answer": true,
	"busy":      true,
}

// Accountant processes the status-callback webhook.
type Accountant struct {
	db       connectors.PostgresConnector
	contexts *callcontext.Store
	usage    *usage.Engine
	logger   commons.Logger
}

// New builds an Accountant.
func New(db connectors.PostgresConnector, contexts *callcontext.Store, usageEngine *usage.Engine, logger commons.Logger) *Accountant {
	return &Accountant{db: db, contexts: contexts, usage: usageEngine, logger: logger}
}

// HandleStatusCallback processes one status-callback delivery. It is
// idempotent: the same (callSid, callStatus, callDurationSec) delivered
// any number of times produces the same final state (spec.md §8, scenario
// 6). Unknown call sids and non-terminal/unrecognized statuses are
// silently dropped rather than erroring, since Twilio does not treat a
// non-2xx as anything but "please retry."
func (a *Accountant) HandleStatusCallback(ctx context.Context, callSid, callStatus string, callDurationSec int) error {
	if !acceptedStatuses[callStatus] {
		a.logger.Debugf("accounting: ignoring non-terminal call status %q for %s", callStatus, callSid)
		return nil
	}

	var record entity.CallRecord
	err := a.db.DB(ctx).Where("provider_call_id = ?", callSid).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		a.logger.Warnw("accounting: stray status callback, no matching call record", "call_sid", callSid)
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load call record", err)
	}

	if record.Status == entity.CallStatusCompleted || record.Status == entity.CallStatusFailed {
		return nil // already terminal, webhook retry
	}

	finalStatus := entity.CallStatusCompleted
	if callStatus != "completed" {
		finalStatus = entity.CallStatusFailed
	}

	duration := callDurationSec
	record.Status = finalStatus
	record.DurationSec = &duration
	if err := a.db.DB(ctx).Save(&record).Error; err != nil {
		return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "save call record", err)
	}

	if finalStatus == entity.CallStatusCompleted {
		if err := a.contexts.Complete(ctx, callSid); err != nil {
			a.logger.Warnw("accounting: failed to mark call context completed", "call_sid", callSid, "error", err)
		}
	} else {
		if err := a.contexts.Fail(ctx, callSid); err != nil {
			a.logger.Warnw("accounting: failed to mark call context failed", "call_sid", callSid, "error", err)
		}
	}

	if err := a.usage.Record(ctx, record.Owner, callSid, callDurationSec); err != nil {
		return err
	}
	return nil
}
