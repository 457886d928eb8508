// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/internal/metrics"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// HealthAPI backs the liveness/readiness/metrics routes, grounded on the
// teacher's HealthCheckRoutes (ping Postgres + Redis, never the business
// stores directly).
type HealthAPI struct {
	logger  commons.Logger
	postgres connectors.PostgresConnector
	redis   connectors.RedisConnector
	metrics *metrics.Registry
}

// NewHealthAPI builds a HealthAPI. redis may be nil (no Redis configured);
// Readiness then only checks Postgres.
func NewHealthAPI(logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector, m *metrics.Registry) *HealthAPI {
	return &HealthAPI{logger: logger, postgres: postgres, redis: redis, metrics: m}
}

// Healthz always returns 200 once the process is up; it proves the HTTP
// server is accepting connections, nothing more.
func (h *HealthAPI) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings every dependency the core cannot serve traffic without.
func (h *HealthAPI) Readiness(c *gin.Context) {
	gdb := h.postgres.DB(c.Request.Context())
	sqlDB, err := gdb.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		h.logger.Warnw("readiness: postgres ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "dependency": "postgres"})
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()); err != nil {
			h.logger.Warnw("readiness: redis ping failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "dependency": "redis"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Metrics wraps the Prometheus exposition handler for the gin engine.
func (h *HealthAPI) Metrics() gin.HandlerFunc {
	return gin.WrapH(h.metrics.Handler())
}
