// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package media

import "context"

// Limiter bounds the number of concurrent media-bridge sessions
// (spec.md §5, default 100, configurable via app.concurrent_call_cap). A
// buffered channel is the semaphore; acquiring blocks until a slot frees
// or ctx is done.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter builds a Limiter with n concurrent slots.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = 100
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot acquired by a prior Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// InUse reports the number of slots currently held, for metrics.
func (l *Limiter) InUse() int {
	return len(l.slots)
}

// Capacity reports the total number of slots.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}
