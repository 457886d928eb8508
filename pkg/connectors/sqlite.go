// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package connectors

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSqliteConnector opens an in-memory (or file-backed, if dsn names a
// path) sqlite database behind the same PostgresConnector interface. Tests
// for the Usage Engine, Scheduler, and Accounting handler use this instead
// of a real Postgres instance. An empty dsn gives each call its own fresh
// in-memory database, shared only by that connector's pooled connections.
func NewSqliteConnector(dsn string) (PostgresConnector, error) {
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &gormConnector{db: db}, nil
}
