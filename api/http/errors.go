// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package http is the gin transport boundary: route registration, JWT
// bearer auth, request validation, and the one place an apperr.Kind is
// translated into an HTTP status. No internal package imports net/http;
// this package is where that translation happens (spec.md §7).
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/internal/apperr"
)

// writeError renders err as the envelope spec.md §6/§7 describes:
// {error, message} always, plus upgrade_options on a policy deny.
func writeError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body := gin.H{"error": string(ae.Code), "message": ae.Message}
		if len(ae.Upgrade) > 0 {
			body["upgrade_options"] = ae.Upgrade
		}
		c.JSON(statusForError(ae), body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "unexpected error"})
}

// statusForError maps an apperr.Kind/Code to the status spec.md §7
// implies; a handful of codes need a status the Kind alone doesn't imply
// (not-found, conflict).
func statusForError(ae *apperr.Error) int {
	switch ae.Code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	}
	switch ae.Kind {
	case apperr.KindAuthn:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPolicy:
		return http.StatusPaymentRequired
	case apperr.KindExternal:
		return http.StatusBadGateway
	case apperr.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
