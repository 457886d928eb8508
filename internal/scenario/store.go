// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// Store is the GORM-backed custom-scenario table: create/list/update/delete,
// all owner-scoped, plus the Get the Registry's Resolve calls through
// CustomScenarioLoader.
type Store struct {
	db     connectors.PostgresConnector
	logger commons.Logger
	now    func() int64
}

// NewStore builds a Store. now supplies the epoch seconds used in custom
// scenario ids and must be non-nil; tests pass a fixed clock to pin ids.
func NewStore(db connectors.PostgresConnector, logger commons.Logger, now func() int64) *Store {
	return &Store{db: db, logger: logger, now: now}
}

func (s *Store) Get(id string) (*Scenario, uint64, error) {
	var row entity.CustomScenario
	err := s.db.DB(context.Background()).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load custom scenario", err)
	}
	sc := rowToScenario(row)
	return &sc, row.Owner, nil
}

// Create validates and persists a new custom scenario. Id collisions from
// two creates by the same caller within the same second fail with
// CONFLICT rather than a raw unique-constraint error (spec.md §4.1).
func (s *Store) Create(ctx context.Context, caller Caller, persona, prompt string, voice Voice, temperature float64, override *VADOverride) (*Scenario, error) {
	if len(persona) < 10 || len(persona) > 1000 {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "persona must be 10-1000 characters")
	}
	if len(prompt) < 10 || len(prompt) > 1000 {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "prompt must be 10-1000 characters")
	}
	if !IsValidVoice(voice) {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "unknown voice")
	}
	if temperature < 0 || temperature > 1 {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "temperature must be in [0,1]")
	}
	vad, err := ApplyVADOverride(SelectVADForScenarioName(persona+" "+prompt), override)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("custom_%d_%d", caller.ID, s.now())
	row := entity.CustomScenario{
		ID:          id,
		Owner:       caller.ID,
		Persona:     persona,
		Prompt:      prompt,
		Voice:       string(voice),
		Temperature: temperature,
	}
	if err := s.db.DB(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.KindValidation, apperr.CodeConflict, "a custom scenario was already created this second, retry")
		}
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "create custom scenario", err)
	}

	sc := rowToScenario(row)
	sc.VAD = vad
	return &sc, nil
}

// ListFor returns every custom scenario owned by caller.
func (s *Store) ListFor(ctx context.Context, caller Caller) ([]Scenario, error) {
	var rows []entity.CustomScenario
	if err := s.db.DB(ctx).Where("owner = ?", caller.ID).Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "list custom scenarios", err)
	}
	out := make([]Scenario, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToScenario(r))
	}
	return out, nil
}

// ScenarioPatch carries the optional fields Update may change.
type ScenarioPatch struct {
	Persona     *string
	Prompt      *string
	Voice       *Voice
	Temperature *float64
}

// Update applies patch to the caller-owned custom scenario id. Ownership
// is re-checked here (not just by Resolve) since Update bypasses Resolve.
func (s *Store) Update(ctx context.Context, caller Caller, id string, patch ScenarioPatch) (*Scenario, error) {
	var row entity.CustomScenario
	tx := s.db.DB(ctx)
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindValidation, apperr.CodeNotFound, "custom scenario not found")
		}
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load custom scenario", err)
	}
	if row.Owner != caller.ID {
		return nil, apperr.New(apperr.KindPolicy, apperr.CodeForbiddenScenario, "scenario belongs to another user")
	}

	if patch.Persona != nil {
		if len(*patch.Persona) < 10 || len(*patch.Persona) > 1000 {
			return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "persona must be 10-1000 characters")
		}
		row.Persona = *patch.Persona
	}
	if patch.Prompt != nil {
		if len(*patch.Prompt) < 10 || len(*patch.Prompt) > 1000 {
			return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "prompt must be 10-1000 characters")
		}
		row.Prompt = *patch.Prompt
	}
	if patch.Voice != nil {
		if !IsValidVoice(*patch.Voice) {
			return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "unknown voice")
		}
		row.Voice = string(*patch.Voice)
	}
	if patch.Temperature != nil {
		if *patch.Temperature < 0 || *patch.Temperature > 1 {
			return nil, apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "temperature must be in [0,1]")
		}
		row.Temperature = *patch.Temperature
	}

	if err := tx.Save(&row).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "update custom scenario", err)
	}
	sc := rowToScenario(row)
	return &sc, nil
}

// Delete removes the caller-owned custom scenario id.
func (s *Store) Delete(ctx context.Context, caller Caller, id string) error {
	var row entity.CustomScenario
	tx := s.db.DB(ctx)
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindValidation, apperr.CodeNotFound, "custom scenario not found")
		}
		return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "load custom scenario", err)
	}
	if row.Owner != caller.ID {
		return apperr.New(apperr.KindPolicy, apperr.CodeForbiddenScenario, "scenario belongs to another user")
	}
	if err := tx.Delete(&row).Error; err != nil {
		return apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "delete custom scenario", err)
	}
	return nil
}

func rowToScenario(row entity.CustomScenario) Scenario {
	return Scenario{
		ID:          row.ID,
		Persona:     row.Persona,
		Prompt:      row.Prompt,
		Voice:       Voice(row.Voice),
		Temperature: row.Temperature,
		VAD:         SelectVADForScenarioName(row.Persona + " " + row.Prompt),
	}
}

func isUniqueViolation(err error) bool {
	// Both the Postgres and sqlite drivers surface a unique-constraint
	// failure as a plain error whose text names the constraint; GORM does
	// not normalize this across drivers, so match on substring the way the
	// teacher's store layer does for conflict-mapping.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
