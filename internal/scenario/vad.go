// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package scenario

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fluentcall/voicecore/internal/apperr"
)

// VADMode is a closed sum (spec.md §9: "no open inheritance needed") of the
// two turn-detection strategies the model accepts.
type VADMode string

const (
	VADModeServer   VADMode = "server_vad"
	VADModeSemantic VADMode = "semantic_vad"
)

// Eagerness is semantic_vad's sole tunable.
type Eagerness string

const (
	EagernessLow    Eagerness = "low"
	EagernessMedium Eagerness = "medium"
	EagernessHigh   Eagerness = "high"
	EagernessAuto   Eagerness = "auto"
)

// VADPolicy is the turn_detection object sent verbatim in session.update.
// Exactly one of the two branches is populated, selected by Mode — this
// is the tagged-variant shape spec.md §9 asks for instead of an open
// interface hierarchy.
type VADPolicy struct {
	Mode VADMode `json:"-"`

	// server_vad fields
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`

	// semantic_vad fields
	Eagerness Eagerness `json:"eagerness,omitempty"`

	CreateResponse    bool `json:"create_response"`
	InterruptResponse bool `json:"interrupt_response"`
}

// MarshalJSON emits the wire shape the model expects for turn_detection:
// Mode surfaces as "type" alongside whichever branch's fields are set.
func (p VADPolicy) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type              VADMode   `json:"type"`
		Threshold         float64   `json:"threshold,omitempty"`
		PrefixPaddingMS   int       `json:"prefix_padding_ms,omitempty"`
		SilenceDurationMS int       `json:"silence_duration_ms,omitempty"`
		Eagerness         Eagerness `json:"eagerness,omitempty"`
		CreateResponse    bool      `json:"create_response"`
		InterruptResponse bool      `json:"interrupt_response"`
	}
	return json.Marshal(wire{
		Type:              p.Mode,
		Threshold:         p.Threshold,
		PrefixPaddingMS:   p.PrefixPaddingMS,
		SilenceDurationMS: p.SilenceDurationMS,
		Eagerness:         p.Eagerness,
		CreateResponse:    p.CreateResponse,
		InterruptResponse: p.InterruptResponse,
	})
}

// DefaultServerVAD returns server_vad with spec.md §4.2's defaults.
func DefaultServerVAD() VADPolicy {
	return VADPolicy{
		Mode:              VADModeServer,
		Threshold:         0.5,
		PrefixPaddingMS:   300,
		SilenceDurationMS: 700,
		CreateResponse:    true,
		InterruptResponse: true,
	}
}

// SemanticVAD returns semantic_vad at the given eagerness.
func SemanticVAD(e Eagerness) VADPolicy {
	return VADPolicy{
		Mode:              VADModeSemantic,
		Eagerness:         e,
		CreateResponse:    true,
		InterruptResponse: true,
	}
}

var emergencyKeywords = []string{"support", "help", "emergency", "urgent"}
var reflectiveKeywords = []string{"therapy", "counseling", "interview", "conversation"}

// SelectVADForScenarioName is a pure function of the scenario name (spec.md
// §4.2's "scenario-based selection"): reflective keywords get
// semantic/low, urgency keywords get semantic/high, everything else gets
// semantic/auto. Callers may override with ApplyVADOverride.
func SelectVADForScenarioName(name string) VADPolicy {
	lower := strings.ToLower(name)
	for _, kw := range reflectiveKeywords {
		if strings.Contains(lower, kw) {
			return SemanticVAD(EagernessLow)
		}
	}
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return SemanticVAD(EagernessHigh)
		}
	}
	return SemanticVAD(EagernessAuto)
}

// VADOverride is the caller-supplied explicit VAD configuration, as it
// would arrive over the HTTP/scenario-create surface.
type VADOverride struct {
	Mode              string
	Threshold         *float64
	PrefixPaddingMS   *int
	SilenceDurationMS *int
	Eagerness         string
}

// ApplyVADOverride validates and applies an explicit override on top of a
// scenario-derived default. Any out-of-range parameter or unknown mode is
// a BAD_PARAMETERS error (spec.md §4.2).
func ApplyVADOverride(base VADPolicy, override *VADOverride) (VADPolicy, error) {
	if override == nil {
		return base, nil
	}

	switch VADMode(override.Mode) {
	case VADModeServer:
		p := DefaultServerVAD()
		if override.Threshold != nil {
			if *override.Threshold < 0 || *override.Threshold > 1 {
				return VADPolicy{}, badParam(fmt.Sprintf("vad threshold %v out of range [0,1]", *override.Threshold))
			}
			p.Threshold = *override.Threshold
		}
		if override.PrefixPaddingMS != nil {
			if *override.PrefixPaddingMS < 0 || *override.PrefixPaddingMS > 2000 {
				return VADPolicy{}, badParam(fmt.Sprintf("vad prefix_padding_ms %d out of range [0,2000]", *override.PrefixPaddingMS))
			}
			p.PrefixPaddingMS = *override.PrefixPaddingMS
		}
		if override.SilenceDurationMS != nil {
			if *override.SilenceDurationMS < 100 || *override.SilenceDurationMS > 5000 {
				return VADPolicy{}, badParam(fmt.Sprintf("vad silence_duration_ms %d out of range [100,5000]", *override.SilenceDurationMS))
			}
			p.SilenceDurationMS = *override.SilenceDurationMS
		}
		return p, nil

	case VADModeSemantic:
		e := Eagerness(override.Eagerness)
		switch e {
		case EagernessLow, EagernessMedium, EagernessHigh, EagernessAuto:
		case "":
			e = EagernessAuto
		default:
			return VADPolicy{}, badParam(fmt.Sprintf("unknown vad eagerness %q", override.Eagerness))
		}
		return SemanticVAD(e), nil

	case "":
		return base, nil

	default:
		return VADPolicy{}, badParam(fmt.Sprintf("unknown vad mode %q", override.Mode))
	}
}

func badParam(msg string) *apperr.Error {
	return apperr.New(apperr.KindValidation, apperr.CodeBadParameters, msg)
}
