// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fluentcall/voicecore/internal/apperr"
)

// ownerContextKey is the gin.Context key BearerAuth stores the
// authenticated owner id under.
const ownerContextKey = "voicecore_owner"

// callerClaims is the token payload /auth/* (out of core scope, spec.md
// §6) issues and BearerAuth verifies: the caller's owner id plus the
// standard registered claims (exp, iat, ...).
type callerClaims struct {
	Owner uint64 `json:"owner"`
	jwt.RegisteredClaims
}

// BearerAuth verifies an HS256 bearer token against secretKey and stores
// the caller's owner id in the gin.Context for downstream handlers.
// Applied to the /mobile/* and /realtime/custom-scenario* groups (spec.md
// §6); webhook and media-stream routes are unauthenticated by design —
// they are verified by transport-level means instead (provider signature,
// start-frame call sid matched against a queued CallContext).
func BearerAuth(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing bearer token"))
			c.Abort()
			return
		}

		var claims callerClaims
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "unexpected signing method")
			}
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeExpiredToken, "token expired"))
			} else {
				writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "invalid bearer token"))
			}
			c.Abort()
			return
		}
		if claims.Owner == 0 {
			writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "token missing owner claim"))
			c.Abort()
			return
		}

		c.Set(ownerContextKey, claims.Owner)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// ownerFromContext reads the owner id BearerAuth attached. Handlers behind
// BearerAuth can assume it is always present; the bool exists only to
// avoid a panic if a route is ever wired without the middleware.
func ownerFromContext(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(ownerContextKey)
	if !exists {
		return 0, false
	}
	owner, ok := v.(uint64)
	return owner, ok
}
