// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package apperr defines the core's error taxonomy. Internal packages
// return *apperr.Error (or a wrapped stdlib error) and never import
// net/http; the HTTP boundary (api/http) is the only place a Kind is
// translated into a status code.
package apperr

import "fmt"

// Kind buckets errors the way spec.md §7 does: authn/authz, validation,
// policy, external, transport, internal.
type Kind string

const (
	KindAuthn      Kind = "authn"
	KindValidation Kind = "validation"
	KindPolicy     Kind = "policy"
	KindExternal   Kind = "external"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// Code enumerates the concrete reason codes named in spec.md §7.
type Code string

const (
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeExpiredToken        Code = "EXPIRED_TOKEN"
	CodeForbiddenScenario   Code = "FORBIDDEN_SCENARIO"
	CodeBadScenarioID       Code = "BAD_SCENARIO_ID"
	CodeBadPhone            Code = "BAD_PHONE"
	CodeBadParameters       Code = "BAD_PARAMETERS"
	CodeTrialExhausted      Code = "TRIAL_EXHAUSTED"
	CodeWeeklyLimit         Code = "WEEKLY_LIMIT"
	CodeMonthlyLimit        Code = "MONTHLY_LIMIT"
	CodeSubscriptionReq     Code = "SUBSCRIPTION_REQUIRED"
	CodeTelephonyFailure    Code = "TELEPHONY_FAILURE"
	CodeModelFailure        Code = "MODEL_FAILURE"
	CodeModelErrorFrame     Code = "MODEL_ERROR_FRAME"
	CodeSocketTimeout       Code = "SOCKET_TIMEOUT"
	CodeSocketClosed        Code = "SOCKET_CLOSED"
	CodeStateInconsistent   Code = "STATE_INCONSISTENT"
	CodeConflict            Code = "CONFLICT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeDispatchFailed      Code = "DISPATCH_FAILED"
)

// Error is the structured error every core package returns for conditions
// the caller needs to branch on (as opposed to ad-hoc fmt.Errorf wrapping
// of genuinely-unexpected failures).
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	// Upgrade carries the pricing/product envelope for policy-kind denials
	// (spec.md §6/§7's {error, message, upgrade_options} shape).
	Upgrade []UpgradeOption
	cause   error
}

// UpgradeOption is one row of the tiered-pricing table shown on a 402.
type UpgradeOption struct {
	Plan      string `json:"plan"`
	Price     string `json:"price"`
	Calls     string `json:"calls"`
	ProductID string `json:"product_id"`
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error that preserves cause via errors.Unwrap.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// WithUpgrade attaches the upgrade-options table to a policy-kind error.
func (e *Error) WithUpgrade(opts ...UpgradeOption) *Error {
	e.Upgrade = opts
	return e
}
