// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package entity

import "time"

// UserPhoneNumber is a business-tier caller-id number. Consumer-tier users
// have no rows here and share the system number (spec.md §3, §4.6).
type UserPhoneNumber struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Owner         uint64 `gorm:"index;not null"`
	E164          string `gorm:"uniqueIndex;not null"`
	ProviderSID   string `gorm:"uniqueIndex;not null"`
	VoiceCapable  bool   `gorm:"not null;default:true"`
	SMSCapable    bool   `gorm:"not null;default:false"`
	Active        bool   `gorm:"not null;default:true"`
	IsPrimary     bool   `gorm:"not null;default:false"`
	ProvisionedAt time.Time
}
