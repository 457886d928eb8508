// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package callcontext persists the correlation row the Dispatcher queues,
// the Media Bridge claims, and Post-call Accounting completes or fails
// (spec.md §4.5-§4.7). The row is never deleted mid-call: a status
// callback can arrive after the media stream has already disconnected.
package callcontext

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// Store is the call-context persistence seam.
type Store struct {
	db     connectors.PostgresConnector
	logger commons.Logger
	now    func() time.Time
}

// New builds a Store.
func New(db connectors.PostgresConnector, logger commons.Logger) *Store {
	return &Store{db: db, logger: logger, now: time.Now}
}

// Queue creates a context in the "queued" state, as the Dispatcher does
// immediately after the provider confirms the call was created.
func (s *Store) Queue(ctx context.Context, cc entity.CallContext) error {
	cc.Status = entity.CallContextQueued
	cc.CreatedAt = s.now()
	cc.UpdatedAt = cc.CreatedAt
	if err := s.db.DB(ctx).Create(&cc).Error; err != nil {
		return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "queue call context", err)
	}
	return nil
}

// Get retrieves a context by id regardless of its current status — status
// callbacks are asynchronous and may arrive well after the media stream
// has disconnected, so the row must stay readable for its full lifetime.
func (s *Store) Get(ctx context.Context, contextID string) (*entity.CallContext, error) {
	var cc entity.CallContext
	err := s.db.DB(ctx).Where("context_id = ?", contextID).First(&cc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load call context", err)
	}
	return &cc, nil
}

// Claim atomically transitions a context from "queued" to "claimed" via a
// status-guarded UPDATE, so only one concurrent media connection can win
// it (grounded on the teacher's Claim, generalized from pending/queued to
// queued-only since every context here starts life outbound-queued).
func (s *Store) Claim(ctx context.Context, contextID string) (*entity.CallContext, error) {
	db := s.db.DB(ctx)
	result := db.Model(&entity.CallContext{}).
		Where("context_id = ? AND status = ?", contextID, entity.CallContextQueued).
		Updates(map[string]interface{}{
			"status":     entity.CallContextClaimed,
			"updated_at": s.now(),
		})
	if result.Error != nil {
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "claim call context", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.New(apperr.KindInternal, apperr.CodeStateInconsistent, "call context not found or already claimed")
	}
	return s.Get(ctx, contextID)
}

// Complete marks a context as completed.
func (s *Store) Complete(ctx context.Context, contextID string) error {
	return s.setTerminal(ctx, contextID, entity.CallContextCompleted)
}

// Fail marks a context as failed.
func (s *Store) Fail(ctx context.Context, contextID string) error {
	return s.setTerminal(ctx, contextID, entity.CallContextFailed)
}

func (s *Store) setTerminal(ctx context.Context, contextID string, status entity.CallContextStatus) error {
	db := s.db.DB(ctx)
	result := db.Model(&entity.CallContext{}).
		Where("context_id = ? AND status NOT IN ?", contextID, []entity.CallContextStatus{entity.CallContextCompleted, entity.CallContextFailed}).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": s.now(),
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "set call context terminal status", result.Error)
	}
	// RowsAffected == 0 means the context was already terminal or missing;
	// both are no-ops here (idempotent terminal transition, spec.md §4.7).
	return nil
}
