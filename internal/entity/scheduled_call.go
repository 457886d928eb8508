// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// ScheduledCall is a future-dated call awaiting the Scheduler's tick loop
// (spec.md §4.4). Removed on every dispatch attempt, success or failure.
type ScheduledCall struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Owner       uint64 `gorm:"index;not null"`
	E164        string `gorm:"not null"`
	ScenarioRef string `gorm:"not null"`
	DueAt       time.Time `gorm:"index;not null"`
	CreatedAt   time.Time
}
