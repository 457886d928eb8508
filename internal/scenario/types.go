// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package scenario implements the Scenario Registry (spec.md §4.1) and the
// VAD Policy derivation (spec.md §4.2). Resolution is a pure function of
// (id, caller) — it never talks to the telephony or model transport — so
// both real-time dispatch and scheduled dispatch can share it.
package scenario

// Voice is the closed set of voices the model supports.
type Voice string

const (
	VoiceAsh     Voice = "ash"
	VoiceCoral   Voice = "coral"
	VoiceShimmer Voice = "shimmer"
	VoiceAlloy   Voice = "alloy"
	VoiceEcho    Voice = "echo"
	VoiceBallad  Voice = "ballad"
	VoiceSage    Voice = "sage"
	VoiceVerse   Voice = "verse"
)

var validVoices = map[Voice]bool{
	VoiceAsh: true, VoiceCoral: true, VoiceShimmer: true, VoiceAlloy: true,
	VoiceEcho: true, VoiceBallad: true, VoiceSage: true, VoiceVerse: true,
}

// IsValidVoice reports whether v is one of the enumerated voices.
func IsValidVoice(v Voice) bool { return validVoices[v] }

// Scenario is the pure value the Media Bridge seeds the model session
// with: persona + prompt + voice + temperature + VAD policy.
type Scenario struct {
	ID          string
	Persona     string
	Prompt      string
	Voice       Voice
	Temperature float64
	VAD         VADPolicy
}
