// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluentcall/voicecore/pkg/connectors"
)

// lockTTL bounds how long a per-user advisory lock is held; Commit and
// Record are both short read-modify-write transactions, so this is sized
// generously rather than tightly.
const lockTTL = 5 * time.Second

// acquireTimeout bounds how long withUserLock retries against a
// contended Redis lock before giving up.
const acquireTimeout = 2 * time.Second

// userLocker serializes counter updates per owner (spec.md §5's "Per-user
// Usage row: per-user mutex or row-level transaction"). When redis is
// nil (no cache configured) it falls back to an in-process mutex per
// owner, which is correct for a single replica and the common case in
// tests.
type userLocker struct {
	redis connectors.RedisConnector

	mu      sync.Mutex
	mutexes map[uint64]*sync.Mutex
}

func newUserLocker(redis connectors.RedisConnector) *userLocker {
	return &userLocker{redis: redis, mutexes: make(map[uint64]*sync.Mutex)}
}

// withUserLock runs fn while holding the lock for owner, releasing it
// unconditionally afterward.
func (l *userLocker) withUserLock(ctx context.Context, owner uint64, fn func() error) error {
	if l.redis == nil {
		return l.withInProcessLock(owner, fn)
	}
	return l.withRedisLock(ctx, owner, fn)
}

func (l *userLocker) withInProcessLock(owner uint64, fn func() error) error {
	l.mu.Lock()
	m, ok := l.mutexes[owner]
	if !ok {
		m = &sync.Mutex{}
		l.mutexes[owner] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn()
}

func (l *userLocker) withRedisLock(ctx context.Context, owner uint64, fn func() error) error {
	key := fmt.Sprintf("usage:%d", owner)
	deadline := time.Now().Add(acquireTimeout)
	for {
		release, acquired, err := l.redis.Lock(ctx, key, lockTTL)
		if err != nil {
			return fmt.Errorf("acquire usage lock: %w", err)
		}
		if acquired {
			defer release()
			return fn()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire usage lock for owner %d: timed out", owner)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
