// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// CallContextStatus is the state machine the Dispatcher, the inbound
// webhook, the Media Bridge and the post-call webhook hand a CallContext
// through. "Queued" replaces the teacher's "pending": every call this core
// places is outbound (the user asked for it),
// so a context always starts life queued by the Dispatcher and is claimed
// once the provider's media WebSocket connects.
type CallContextStatus string

const (
	CallContextQueued    CallContextStatus = "queued"
	CallContextClaimed   CallContextStatus = "claimed"
	CallContextCompleted CallContextStatus = "completed"
	CallContextFailed    CallContextStatus = "failed"
)

// CallContext correlates a provider call-sid with the scenario/user/cap
// decided at dispatch time, so that when the provider later opens the
// media-stream WebSocket (a scenario id in the URL, a streamSid and the
// callSid in the start frame) the bridge can claim this row by callSid and
// recover who is on the call and what they are allowed to do. It is never deleted mid-call: status-callback webhooks
// can arrive after the media stream has already disconnected.
type CallContext struct {
	ContextID       string `gorm:"primaryKey"` // provider call sid
	Owner           uint64 `gorm:"index;not null"`
	E164            string `gorm:"not null"`
	ScenarioRef     string `gorm:"not null"`
	DurationCapSec  int    `gorm:"not null"`
	Source          string `gorm:"not null"` // usage.Source, stored as string to avoid an import cycle
	Status          CallContextStatus `gorm:"not null;default:queued"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
