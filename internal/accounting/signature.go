// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package accounting implements Post-call Accounting (spec.md §4.7): the
// status-callback webhook handler that finalizes a call's CallRecord and
// CallContext and feeds the actual duration back into the Usage Engine.
package accounting

import "github.com/twilio/twilio-go/client"

// SignatureValidator verifies that a status-callback request actually
// came from the telephony provider (spec.md §7: webhook authenticity is
// the only inbound surface not covered by bearer-token auth).
type SignatureValidator struct {
	validator client.RequestValidator
}

// NewSignatureValidator builds a validator using the account's auth token.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: client.NewRequestValidator(authToken)}
}

// Validate checks the X-Twilio-Signature header against the full request
// URL and form parameters.
func (v *SignatureValidator) Validate(url string, params map[string]string, signature string) bool {
	return v.validator.Validate(url, params, signature)
}
