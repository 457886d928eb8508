// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/config"
	"github.com/fluentcall/voicecore/internal/accounting"
	"github.com/fluentcall/voicecore/internal/dispatch"
	"github.com/fluentcall/voicecore/internal/media"
	"github.com/fluentcall/voicecore/internal/metrics"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/internal/telephonyws"
	"github.com/fluentcall/voicecore/internal/usage"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// Deps collects every wired component the route groups below need, built
// once in cmd/server/main.go.
type Deps struct {
	Cfg          *config.AppConfig
	Logger       commons.Logger
	Postgres     connectors.PostgresConnector
	Redis        connectors.RedisConnector
	Usage        *usage.Engine
	Dispatcher   *dispatch.Dispatcher
	ScenarioStore *scenario.Store
	Accountant   *accounting.Accountant
	Signature    *accounting.SignatureValidator
	Limiter      *media.Limiter
	Telephonyws  *telephonyws.Server
	Metrics      *metrics.Registry
}

// Register wires every route group onto engine, grounded on the teacher's
// XxxRoutes(cfg, engine, logger, postgres, ...) grouped-function pattern.
func Register(engine *gin.Engine, deps Deps) {
	HealthRoutes(deps.Cfg, engine, deps.Logger, deps.Postgres, deps.Redis, deps.Metrics)
	MobileRoutes(deps.Cfg, engine, deps.Logger, deps.Usage, deps.Dispatcher, deps.Postgres)
	ScenarioRoutes(deps.Cfg, engine, deps.Logger, deps.ScenarioStore)
	WebhookRoutes(deps.Cfg, engine, deps.Logger, deps.Limiter, deps.Accountant, deps.Signature)
	MediaStreamRoutes(engine, deps.Telephonyws)
}

// HealthRoutes registers the liveness/readiness/metrics group.
func HealthRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector, m *metrics.Registry) {
	logger.Info("registering health routes")
	api := NewHealthAPI(logger, postgres, redis, m)
	group := engine.Group("")
	{
		group.GET("/healthz", api.Healthz)
		group.GET("/readiness", api.Readiness)
		group.GET("/metrics", api.Metrics())
	}
}

// MobileRoutes registers the bearer-authenticated /mobile/* group.
func MobileRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, usageEngine *usage.Engine, dispatcher *dispatch.Dispatcher, postgres connectors.PostgresConnector) {
	logger.Info("registering mobile routes")
	api := NewMobileAPI(usageEngine, dispatcher, postgres, logger)
	group := engine.Group("/mobile", BearerAuth(cfg.Auth.SecretKey))
	{
		group.POST("/check-call-permission", api.CheckCallPermission)
		group.POST("/make-call", api.MakeCall)
		group.POST("/schedule-call", api.ScheduleCall)
		group.GET("/usage-stats", api.UsageStats)
	}
}

// ScenarioRoutes registers the bearer-authenticated custom-scenario CRUD
// group.
func ScenarioRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, store *scenario.Store) {
	logger.Info("registering scenario routes")
	api := NewScenarioAPI(store, logger)
	group := engine.Group("/realtime/custom-scenario", BearerAuth(cfg.Auth.SecretKey))
	{
		group.POST("", api.Create)
		group.GET("", api.List)
		group.PATCH("/:id", api.Update)
		group.DELETE("/:id", api.Delete)
	}
}

// WebhookRoutes registers the provider-facing, unauthenticated-by-bearer
// routes: the TwiML fetch for both scenario namespaces and the post-call
// status callback.
func WebhookRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, limiter *media.Limiter, accountant *accounting.Accountant, signature *accounting.SignatureValidator) {
	logger.Info("registering webhook routes")
	api := NewWebhookAPI(limiter, accountant, signature, wsOrigin(cfg.App.PublicURL), logger)
	group := engine.Group("")
	{
		group.POST("/incoming-call/:scenario", api.IncomingCall)
		group.POST("/incoming-custom-call/:id", api.IncomingCustomCall)
		group.POST("/call-end-webhook", api.StatusCallback)
	}
}

// MediaStreamRoutes registers the two media-stream WebSocket upgrade
// routes; both share one telephonyws.Server since Handle recovers every
// call-specific detail from the claimed CallContext, not the URL.
func MediaStreamRoutes(engine *gin.Engine, server *telephonyws.Server) {
	engine.GET("/media-stream/:scenario", server.Handle)
	engine.GET("/media-stream-custom/:id", server.Handle)
}

// wsOrigin derives the wss:// (or ws://) origin the TwiML response points
// the provider's media stream at, from the configured http(s) public URL.
func wsOrigin(publicURL string) string {
	switch {
	case strings.HasPrefix(publicURL, "https://"):
		return "wss://" + strings.TrimPrefix(publicURL, "https://")
	case strings.HasPrefix(publicURL, "http://"):
		return "ws://" + strings.TrimPrefix(publicURL, "http://")
	default:
		return publicURL
	}
}
