// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package media

import "encoding/json"

// ProviderInFrame is one frame read from the telephony media-stream
// WebSocket. The shape mirrors the teacher's WSRequest/WSResponse
// envelope (an event discriminator plus one typed, optional payload
// field per event)
// rather than a grab-bag map, per spec.md §9's closed-sum guidance.
type ProviderInFrame struct {
	Event string         `json:"event"`
	Start *ProviderStart `json:"start,omitempty"`
	Media *ProviderMedia `json:"media,omitempty"`
	Mark  *ProviderMark  `json:"mark,omitempty"`
}

// ProviderStart carries the per-call identifiers the provider assigns
// when it opens the media-stream WebSocket.
type ProviderStart struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

// ProviderMedia carries one inbound G.711 u-law audio chunk.
type ProviderMedia struct {
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64
}

// ProviderMark echoes back a mark name the bridge previously emitted.
type ProviderMark struct {
	Name string `json:"name"`
}

// providerMediaOut is the outbound "media" frame (bridge -> provider).
type providerMediaOut struct {
	Event     string            `json:"event"`
	StreamSid string            `json:"streamSid"`
	Media     providerMediaOutP `json:"media"`
}

type providerMediaOutP struct {
	Payload string `json:"payload"`
}

// providerMarkOut is the outbound "mark" frame, emitted after each audio
// delta so barge-in can compute elapsed audio (spec.md §4.5).
type providerMarkOut struct {
	Event     string           `json:"event"`
	StreamSid string           `json:"streamSid"`
	Mark      providerMarkOutP `json:"mark"`
}

type providerMarkOutP struct {
	Name string `json:"name"`
}

// providerClearOut drops the provider's queued outbound audio on barge-in.
type providerClearOut struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

// modelEvent reads just the type discriminator off a model frame; the
// caller re-decodes the full raw message into a type-specific struct
// once it knows which one applies — same dispatch idiom as the
// teacher's WSResponse.
type modelEvent struct {
	Type string `json:"type"`
}

type modelAudioDelta struct {
	Delta  string `json:"delta"`
	ItemID string `json:"item_id"`
}

type modelErrorFrame struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// modelSessionUpdate seeds the model session with the scenario's
// persona/prompt/voice/VAD (spec.md §4.5 step 3).
type modelSessionUpdate struct {
	Type    string             `json:"type"`
	Session modelSessionConfig `json:"session"`
}

type modelSessionConfig struct {
	Instructions      string          `json:"instructions"`
	Voice             string          `json:"voice"`
	Temperature       float64         `json:"temperature"`
	InputAudioFormat  string          `json:"input_audio_format"`
	OutputAudioFormat string          `json:"output_audio_format"`
	Modalities        []string        `json:"modalities"`
	TurnDetection     json.RawMessage `json:"turn_detection"`
}

type modelBufferAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type modelBufferCommit struct {
	Type string `json:"type"`
}

type modelResponseCreate struct {
	Type     string               `json:"type"`
	Response *modelResponseConfig `json:"response,omitempty"`
}

type modelResponseConfig struct {
	Instructions string `json:"instructions,omitempty"`
}

type modelItemTruncate struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id"`
	ContentIdx int    `json:"content_index"`
	AudioEndMS int    `json:"audio_end_ms"`
}
