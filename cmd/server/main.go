// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Command server is the voice core's process entrypoint: load
// configuration, build every component, run database migrations,
// register HTTP routes, and run until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	apihttp "github.com/fluentcall/voicecore/api/http"
	"github.com/fluentcall/voicecore/config"
	"github.com/fluentcall/voicecore/internal/accounting"
	"github.com/fluentcall/voicecore/internal/callcontext"
	"github.com/fluentcall/voicecore/internal/dispatch"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/media"
	"github.com/fluentcall/voicecore/internal/metrics"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/internal/scheduler"
	"github.com/fluentcall/voicecore/internal/telephonyws"
	"github.com/fluentcall/voicecore/internal/usage"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// bridgeSampleInterval is how often main samples the Media Bridge
// limiter's occupancy into the active-sessions gauge.
const bridgeSampleInterval = 5 * time.Second

func main() {
	configFile := flag.String("config", "", "path to a config file (defaults to env-only)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}

	logger, err := commons.NewLogger(cfg.App.LogLevel, cfg.App.DevelopmentMode)
	if err != nil {
		panic(err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.AppConfig, logger commons.Logger) error {
	postgres, err := connectors.NewPostgresConnector(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(
		&entity.User{},
		&entity.UserPhoneNumber{},
		&entity.UsageLimits{},
		&entity.UsageCountedCall{},
		&entity.CustomScenario{},
		&entity.ScheduledCall{},
		&entity.CallRecord{},
		&entity.CallContext{},
	); err != nil {
		return err
	}

	var redis connectors.RedisConnector
	if cfg.Redis.Addr != "" {
		redis = connectors.NewRedisConnector(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redis.Close()
	}

	metricsRegistry := metrics.New()

	scenarioStore := scenario.NewStore(postgres, logger, func() int64 { return time.Now().Unix() })
	usageEngine := usage.New(postgres, redis, logger, cfg.App.DevelopmentMode)
	usageEngine.SetMetrics(metricsRegistry)

	contexts := callcontext.New(postgres, logger)
	accountant := accounting.New(postgres, contexts, usageEngine, logger)
	signatureValidator := accounting.NewSignatureValidator(cfg.Telephony.AuthToken)

	provider := dispatch.NewTwilioProvider(cfg.Telephony.AccountSID, cfg.Telephony.AuthToken)
	dispatcher := dispatch.New(postgres, usageEngine, scenarioStore, contexts, provider, logger, cfg.App.PublicURL, cfg.Telephony.SystemNumberE164)
	dispatcher.SetMetrics(metricsRegistry)

	limiter := media.NewLimiter(cfg.App.ConcurrentCallCap)

	sched := scheduler.New(postgres, usageEngine, dispatcher, logger, cfg.App.SchedulerInterval)
	sched.SetMetrics(metricsRegistry)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telephonyServer := telephonyws.New(rootCtx, contexts, scenarioStore, limiter, accountant, cfg.Model.Endpoint, cfg.Model.APIKey, logger)

	gin.SetMode(ginMode(cfg))
	engine := gin.New()
	engine.Use(gin.Recovery())

	apihttp.Register(engine, apihttp.Deps{
		Cfg:           cfg,
		Logger:        logger,
		Postgres:      postgres,
		Redis:         redis,
		Usage:         usageEngine,
		Dispatcher:    dispatcher,
		ScenarioStore: scenarioStore,
		Accountant:    accountant,
		Signature:     signatureValidator,
		Limiter:       limiter,
		Telephonyws:   telephonyServer,
		Metrics:       metricsRegistry,
	})

	srv := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: engine,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go sched.Run(rootCtx)
	go sampleBridgeOccupancy(rootCtx, limiter, metricsRegistry)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
		}
	}()
	logger.Infof("voicecore listening on %s", cfg.App.HTTPAddr)

	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// sampleBridgeOccupancy feeds the Media Bridge limiter's live occupancy
// into the bridge-sessions gauges on an interval, since the limiter
// itself has no event hook to push from.
func sampleBridgeOccupancy(ctx context.Context, limiter *media.Limiter, m *metrics.Registry) {
	ticker := time.NewTicker(bridgeSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetBridgeSessions(limiter.InUse(), limiter.Capacity())
		}
	}
}

func ginMode(cfg *config.AppConfig) string {
	if cfg.App.DevelopmentMode {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
