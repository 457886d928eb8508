// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package connectors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConnector exposes the subset of Redis operations this repo needs:
// an advisory lock (per-user Usage Engine serialization) and a liveness
// ping (health checks). A nil RedisConnector is a valid value — callers
// that receive one fall back to in-process locking (see internal/usage).
type RedisConnector interface {
	// Lock attempts to acquire a named advisory lock for ttl. It returns a
	// release function and true on success; on failure (already held) it
	// returns a no-op release and false.
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
	Ping(ctx context.Context) error
	Close() error
}

type redisConnector struct {
	client *redis.Client
}

// NewRedisConnector dials addr. db/password come from config.RedisSection.
func NewRedisConnector(addr, password string, db int) RedisConnector {
	return &redisConnector{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *redisConnector) Lock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := c.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// Best-effort: only delete if we still hold it (token matches).
		// A short Lua script would be safer against a race with TTL
		// expiry + re-acquisition, but the window is the ttl itself,
		// which callers size well above their critical section.
		val, err := c.client.Get(ctx, "lock:"+key).Result()
		if err == nil && val == token {
			c.client.Del(ctx, "lock:"+key)
		}
	}
	return release, true, nil
}

func (c *redisConnector) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisConnector) Close() error {
	return c.client.Close()
}
