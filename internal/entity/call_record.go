// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// CallStatus is CallRecord's lifecycle state. Once Completed or Failed, a
// CallRecord is immutable (spec.md §3).
type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// CallRecord is created at dispatch and updated by status callbacks.
type CallRecord struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Owner          uint64 `gorm:"index;not null"`
	ProviderCallID string `gorm:"uniqueIndex;not null"`
	E164           string `gorm:"not null"`
	ScenarioRef    string `gorm:"not null"`
	Status         CallStatus `gorm:"not null;default:initiated"`
	StartedAt      time.Time  `gorm:"not null"`
	DurationSec    *int
	RecordingURL   string
}
