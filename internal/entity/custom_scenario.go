// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// CustomScenario is a user-authored Scenario. Id format is
// custom_<owner>_<epoch-seconds> (spec.md §4.1); uniqueness is enforced by
// the store, not by a database constraint alone, since two creates in the
// same second by the same user must fail with CONFLICT rather than a raw
// constraint-violation error.
type CustomScenario struct {
	ID          string `gorm:"primaryKey"`
	Owner       uint64 `gorm:"index;not null"`
	Persona     string `gorm:"not null"`
	Prompt      string `gorm:"not null"`
	Voice       string `gorm:"not null"`
	Temperature float64 `gorm:"not null"`
	CreatedAt   time.Time
}
