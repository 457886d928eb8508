// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package config loads process-wide configuration once at startup. Nothing
// under this package is mutated after Load returns.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the immutable, process-wide configuration for the voice core.
type AppConfig struct {
	App       AppSection       `mapstructure:"app"`
	Database  DatabaseSection  `mapstructure:"database"`
	Redis     RedisSection     `mapstructure:"redis"`
	Telephony TelephonySection `mapstructure:"telephony"`
	Model     ModelSection     `mapstructure:"model"`
	Auth      AuthSection      `mapstructure:"auth"`
}

type AppSection struct {
	PublicURL         string        `mapstructure:"public_url"`
	DevelopmentMode   bool          `mapstructure:"development_mode"`
	ConcurrentCallCap int           `mapstructure:"concurrent_call_cap"`
	HTTPAddr          string        `mapstructure:"http_addr"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`
	LogLevel          string        `mapstructure:"log_level"`
}

type DatabaseSection struct {
	URL string `mapstructure:"url"`
}

type RedisSection struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelephonySection struct {
	AccountSID       string `mapstructure:"account_sid"`
	AuthToken        string `mapstructure:"auth_token"`
	SystemNumberE164 string `mapstructure:"system_number_e164"`
}

type ModelSection struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type AuthSection struct {
	SecretKey string `mapstructure:"secret_key"`
}

// Load reads configuration from environment variables (prefixed VOICECORE_)
// and an optional config file, applies defaults, and validates the result.
// A required value missing after Load aborts startup — callers should treat
// any returned error as fatal.
func Load(configFile string) (*AppConfig, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VOICECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about, so keys without a
	// default are bound to their env vars explicitly.
	for _, key := range []string{
		"app.public_url", "app.development_mode",
		"database.url",
		"redis.addr", "redis.password",
		"telephony.account_sid", "telephony.auth_token", "telephony.system_number_e164",
		"model.api_key", "model.endpoint",
		"auth.secret_key",
	} {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.concurrent_call_cap", 100)
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.metrics_addr", ":9090")
	v.SetDefault("app.scheduler_interval", "60s")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("redis.db", 0)
}

// Validate fails startup early when a value the core cannot run without is
// missing. DEVELOPMENT_MODE relaxes telephony/model credential requirements
// so the bridge and scheduler can be exercised against fakes in tests.
func (c *AppConfig) Validate() error {
	if c.App.PublicURL == "" {
		return fmt.Errorf("app.public_url is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required")
	}
	if !c.App.DevelopmentMode {
		if c.Telephony.AccountSID == "" || c.Telephony.AuthToken == "" {
			return fmt.Errorf("telephony.account_sid and telephony.auth_token are required outside development mode")
		}
		if c.Model.APIKey == "" {
			return fmt.Errorf("model.api_key is required outside development mode")
		}
	}
	if c.App.ConcurrentCallCap <= 0 {
		return fmt.Errorf("app.concurrent_call_cap must be positive")
	}
	return nil
}
