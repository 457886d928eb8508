// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package scenario

import (
	"strings"

	"github.com/fluentcall/voicecore/internal/apperr"
)

// builtins is the fixed, process-wide scenario table (spec.md §4.1),
// built once by newBuiltins and never mutated, so concurrent Resolve
// calls need no lock.
var builtins = newBuiltins()

// newBuiltins constructs the built-in table and backfills each entry's
// VAD policy, rather than doing that backfill in a package init().
func newBuiltins() map[string]Scenario {
	b := rawBuiltins()
	for id, s := range b {
		s.VAD = SelectVADForScenarioName(id)
		b[id] = s
	}
	return b
}

func rawBuiltins() map[string]Scenario {
	return map[string]Scenario{
		"default": {
			ID:          "default",
			Persona:     "a friendly, helpful voice assistant",
			Prompt:      "You are a friendly, helpful voice assistant. Keep answers short and conversational.",
			Voice:       VoiceAlloy,
			Temperature: 0.8,
		},
		"sister_emergency": {
			ID:          "sister_emergency",
			Persona:     "the caller's sister, panicked about a family emergency",
			Prompt:      "You are the caller's sister. You sound panicked and need them to leave whatever they're doing immediately because of a family emergency.",
			Voice:       VoiceShimmer,
			Temperature: 0.9,
		},
		"mother_emergency": {
			ID:          "mother_emergency",
			Persona:     "the caller's mother, in mild distress",
			Prompt:      "You are the caller's mother. You are in mild distress and need them to call you back or come home soon.",
			Voice:       VoiceCoral,
			Temperature: 0.85,
		},
		"yacht_party": {
			ID:          "yacht_party",
			Persona:     "a loud, glamorous friend calling from a yacht party",
			Prompt:      "You are a loud, glamorous friend calling from a yacht party, trying to convince the caller to join.",
			Voice:       VoiceVerse,
			Temperature: 0.95,
		},
		"instigator": {
			ID:          "instigator",
			Persona:     "a friend stirring up drama about a mutual acquaintance",
			Prompt:      "You are a friend calling to stir up drama about a mutual acquaintance. Keep it playful, never cruel.",
			Voice:       VoiceAsh,
			Temperature: 0.9,
		},
		"gameshow_host": {
			ID:          "gameshow_host",
			Persona:     "an over-the-top gameshow host",
			Prompt:      "You are an over-the-top gameshow host calling to tell the caller they've won a prize and must answer a question to claim it.",
			Voice:       VoiceSage,
			Temperature: 0.9,
		},
	}
}

// CustomScenarioLoader is the narrow persistence seam the Registry needs
// for the custom-scenario namespace. internal/scenario/store.go implements
// it against Postgres; Resolve itself stays storage-agnostic.
type CustomScenarioLoader interface {
	Get(id string) (*Scenario, uint64, error) // scenario, owner, error
}

// Caller is the minimal identity Resolve needs to authorize custom-id
// access. Kept local to this package rather than importing entity.User
// so scenario has no dependency on the persistence layer's shape.
type Caller struct {
	ID uint64
}

// Resolve looks a scenario id up first in the built-in table, then in the
// custom table via loader. Custom ids are namespaced custom_<uid>_...; a
// caller whose id does not match that namespace is denied even when the
// row exists, per spec.md §4.1.
func Resolve(loader CustomScenarioLoader, id string, caller Caller) (Scenario, error) {
	if s, ok := builtins[id]; ok {
		return s, nil
	}

	if !strings.HasPrefix(id, "custom_") {
		return Scenario{}, apperr.New(apperr.KindValidation, apperr.CodeBadScenarioID, "unknown scenario id")
	}

	s, owner, err := loader.Get(id)
	if err != nil {
		return Scenario{}, err
	}
	if s == nil {
		return Scenario{}, apperr.New(apperr.KindValidation, apperr.CodeBadScenarioID, "unknown scenario id")
	}
	if owner != caller.ID {
		return Scenario{}, apperr.New(apperr.KindPolicy, apperr.CodeForbiddenScenario, "scenario belongs to another user")
	}
	return *s, nil
}

// BuiltinIDs returns the built-in scenario ids, for listing endpoints.
func BuiltinIDs() []string {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	return ids
}
