// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package dispatch implements the Call Dispatcher (spec.md §4.6): given a
// permitted caller, it picks a caller-id, asks the telephony provider to
// place the call, and — only on confirmed success — commits the usage
// counters and writes the correlating CallRecord/CallContext rows.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/fluentcall/voicecore/internal/apperr"
)

// CallParams is the provider-agnostic request the Dispatcher builds.
type CallParams struct {
	To             string
	From           string
	WebhookURL     string
	StatusCallback string
	TimeLimitSec   int
	Record         bool
}

// Provider places an outbound call and returns the provider's call id.
type Provider interface {
	CreateCall(ctx context.Context, params CallParams) (providerCallID string, err error)
}

// restCallTimeout bounds the telephony REST round trip (spec.md §5).
const restCallTimeout = 10 * time.Second

type twilioProvider struct {
	client *twilio.RestClient
}

// NewTwilioProvider builds a Provider backed by twilio-go, authenticated
// as the single shared core identity (no per-user model/telephony
// credentials, spec.md §4.5).
func NewTwilioProvider(accountSID, authToken string) Provider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &twilioProvider{client: client}
}

func (p *twilioProvider) CreateCall(ctx context.Context, params CallParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, restCallTimeout)
	defer cancel()

	req := &twilioapi.CreateCallParams{}
	req.SetTo(params.To)
	req.SetFrom(params.From)
	req.SetUrl(params.WebhookURL)
	req.SetStatusCallback(params.StatusCallback)
	req.SetStatusCallbackMethod("POST")
	req.SetTimeLimit(params.TimeLimitSec)
	req.SetRecord(params.Record)
	req.SetMachineDetection("disabled")

	resp, err := p.client.Api.CreateCallWithContext(ctx, req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExternal, apperr.CodeTelephonyFailure, "create provider call", err)
	}
	if resp.Sid == nil {
		return "", apperr.New(apperr.KindExternal, apperr.CodeTelephonyFailure, "provider returned no call sid")
	}
	return *resp.Sid, nil
}

// BuildWebhookURL assembles the inbound TwiML-fetch URL for a scenario
// (spec.md §6). Custom scenario ids use the custom-call path.
func BuildWebhookURL(publicURL, scenarioRef string, isCustom bool) string {
	if isCustom {
		return fmt.Sprintf("%s/incoming-custom-call/%s", publicURL, scenarioRef)
	}
	return fmt.Sprintf("%s/incoming-call/%s", publicURL, scenarioRef)
}

// BuildStatusCallbackURL assembles the post-call webhook URL.
func BuildStatusCallbackURL(publicURL string) string {
	return publicURL + "/call-end-webhook"
}
