// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/internal/apperr"
)

func TestStatusForErrorMapsCodesAndKinds(t *testing.T) {
	cases := []struct {
		name string
		err  *apperr.Error
		want int
	}{
		{"not found wins over kind", apperr.New(apperr.KindExternal, apperr.CodeNotFound, "x"), http.StatusNotFound},
		{"conflict wins over kind", apperr.New(apperr.KindValidation, apperr.CodeConflict, "x"), http.StatusConflict},
		{"authn", apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "x"), http.StatusUnauthorized},
		{"validation", apperr.New(apperr.KindValidation, apperr.CodeBadParameters, "x"), http.StatusBadRequest},
		{"policy", apperr.New(apperr.KindPolicy, apperr.CodeTrialExhausted, "x"), http.StatusPaymentRequired},
		{"external", apperr.New(apperr.KindExternal, apperr.CodeTelephonyFailure, "x"), http.StatusBadGateway},
		{"transport", apperr.New(apperr.KindTransport, apperr.CodeSocketTimeout, "x"), http.StatusGatewayTimeout},
		{"internal default", apperr.New(apperr.KindInternal, apperr.CodeStateInconsistent, "x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.want {
				t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestWriteErrorIncludesUpgradeOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	err := apperr.New(apperr.KindPolicy, apperr.CodeTrialExhausted, "trial exhausted").
		WithUpgrade(apperr.UpgradeOption{Plan: "basic", Price: "$9", Calls: "20/week", ProductID: "prod_basic"})
	writeError(c, err)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != string(apperr.CodeTrialExhausted) {
		t.Errorf("error field = %v, want %v", body["error"], apperr.CodeTrialExhausted)
	}
	if _, ok := body["upgrade_options"]; !ok {
		t.Error("expected upgrade_options in body")
	}
}

func TestWriteErrorFallsBackToInternalForUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	writeError(c, errors.New("something unexpected"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
