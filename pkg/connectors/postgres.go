// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package connectors

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresConnector hands callers a *gorm.DB scoped to a context. Every
// store in this repo depends on the interface, not the concrete driver, so
// tests can swap in a sqlite-backed implementation (see NewSqliteConnector).
type PostgresConnector interface {
	DB(ctx context.Context) *gorm.DB
	AutoMigrate(models ...interface{}) error
	Close() error
}

type gormConnector struct {
	db *gorm.DB
}

// NewPostgresConnector opens a connection pool against url and tunes it for
// a high-concurrency, short-transaction workload (usage counter updates,
// call-context claims).
func NewPostgresConnector(url string) (PostgresConnector, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &gormConnector{db: db}, nil
}

func (c *gormConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *gormConnector) AutoMigrate(models ...interface{}) error {
	return c.db.AutoMigrate(models...)
}

func (c *gormConnector) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
