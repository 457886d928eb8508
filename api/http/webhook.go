// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"

	"github.com/fluentcall/voicecore/internal/accounting"
	"github.com/fluentcall/voicecore/internal/media"
	"github.com/fluentcall/voicecore/pkg/commons"
)

// acquireTimeout bounds how long the inbound webhook waits for a free
// Media Bridge slot before giving up and rejecting the call; it must not
// exceed the telephony provider's REST timeout (spec.md §5, 10s).
const acquireTimeout = 10 * time.Second

// WebhookAPI backs the telephony-facing routes: the TwiML-equivalent
// fetch Twilio makes once a dispatched call connects, and the post-call
// status callback. Both are unauthenticated by bearer token — the former
// only names a scenario ref, and the media stream it points at recovers
// the call's owner and cap from the CallContext the Dispatcher queued
// under the provider call sid; the latter is verified by
// accounting.SignatureValidator instead.
type WebhookAPI struct {
	limiter    *media.Limiter
	accountant *accounting.Accountant
	signature  *accounting.SignatureValidator
	wsOrigin   string
	logger     commons.Logger
}

// NewWebhookAPI builds a WebhookAPI. wsOrigin is the public wss:// origin
// the TwiML response directs the provider to open its media stream
// against (derived from app.public_url).
func NewWebhookAPI(limiter *media.Limiter, accountant *accounting.Accountant, signature *accounting.SignatureValidator, wsOrigin string, logger commons.Logger) *WebhookAPI {
	return &WebhookAPI{limiter: limiter, accountant: accountant, signature: signature, wsOrigin: wsOrigin, logger: logger}
}

// IncomingCall handles the built-in-scenario TwiML fetch: reserve a
// bridge slot, then tell the provider to open a media-stream WebSocket at
// /media-stream/<scenario>. A slot that can't be acquired within
// acquireTimeout is rejected with <Reject/> rather than left to the
// provider's own REST timeout.
func (w *WebhookAPI) IncomingCall(c *gin.Context) {
	w.respondConnect(c, "/media-stream/"+c.Param("scenario"))
}

// IncomingCustomCall is IncomingCall's counterpart for custom scenario ids.
func (w *WebhookAPI) IncomingCustomCall(c *gin.Context) {
	w.respondConnect(c, "/media-stream-custom/"+c.Param("id"))
}

func (w *WebhookAPI) respondConnect(c *gin.Context, streamPath string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), acquireTimeout)
	defer cancel()

	if err := w.limiter.Acquire(ctx); err != nil {
		w.logger.Warnw("webhook: no bridge capacity, rejecting call", "stream_path", streamPath)
		c.Data(http.StatusOK, "text/xml", rejectTwiML())
		return
	}

	body, err := connectTwiML(w.wsOrigin + streamPath)
	if err != nil {
		w.logger.Errorf("webhook: build TwiML: %v", err)
		w.limiter.Release()
		c.Data(http.StatusOK, "text/xml", rejectTwiML())
		return
	}
	c.Data(http.StatusOK, "text/xml", []byte(body))
}

func connectTwiML(streamURL string) (string, error) {
	stream := &twiml.VoiceConnectStream{Url: streamURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	return twiml.Voice([]twiml.Element{connect})
}

func rejectTwiML() []byte {
	body, err := twiml.Voice([]twiml.Element{&twiml.VoiceReject{Reason: "busy"}})
	if err != nil {
		return []byte(`<?xml version="1.0" encoding="UTF-8"?><Response><Reject/></Response>`)
	}
	return []byte(body)
}

// StatusCallback handles the provider's post-call webhook (spec.md §4.7):
// form fields CallSid, CallDuration, CallStatus. The signature is
// validated against the full request URL before anything is applied.
func (w *WebhookAPI) StatusCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		writeError(c, err)
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		params[k] = c.Request.PostForm.Get(k)
	}
	signature := c.GetHeader("X-Twilio-Signature")
	if !w.signature.Validate(requestURL(c.Request), params, signature) {
		c.Status(http.StatusForbidden)
		return
	}

	callSid := c.PostForm("CallSid")
	callStatus := c.PostForm("CallStatus")
	durationSec, _ := strconv.Atoi(c.PostForm("CallDuration"))

	if err := w.accountant.HandleStatusCallback(c.Request.Context(), callSid, callStatus, durationSec); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}
