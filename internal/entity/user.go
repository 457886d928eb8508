// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package entity holds the GORM models backing spec.md §3's data model.
// Scenario (the built-in table) is the one entity in §3 that is NOT here —
// it is a process-wide Go constant table, not a database row; see
// internal/scenario.
package entity

import "time"

// User is the root of ownership for every other per-user entity.
type User struct {
	ID              uint64 `gorm:"primaryKey"`
	Email           string `gorm:"uniqueIndex;not null"`
	CredentialHash  string `gorm:"not null"`
	DisplayName     string
	VoicePreference string
	Deactivated     bool `gorm:"not null;default:false"`
	CreatedAt       time.Time
}
