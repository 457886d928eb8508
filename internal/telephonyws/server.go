// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package telephonyws is the provider-facing WebSocket server: it
// upgrades the connection the telephony provider opens after the inbound
// webhook's TwiML-equivalent response, recovers the call's CallContext
// from the "start" frame, and hands the live connection to a
// media.Session. Grounded on the teacher's webrtc.go upgrader shape
// (gorilla/websocket.Upgrader with a permissive CheckOrigin, since the
// provider is a trusted backend, not a browser).
package telephonyws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fluentcall/voicecore/internal/callcontext"
	"github.com/fluentcall/voicecore/internal/media"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/pkg/commons"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// startFrameTimeout bounds how long the handler waits for the provider's
// initial "start" frame before giving up on the connection.
const startFrameTimeout = 10 * time.Second

// Server upgrades the media-stream WebSocket and runs one media.Session
// per call to completion.
type Server struct {
	contexts      *callcontext.Store
	loader        scenario.CustomScenarioLoader
	limiter       *media.Limiter
	accountant    media.Accountant
	modelEndpoint string
	modelAPIKey   string
	rootCtx       context.Context
	logger        commons.Logger
}

// New builds a Server. rootCtx is the process lifetime context; sessions
// are rooted under it so they outlive the individual upgrade request.
func New(rootCtx context.Context, contexts *callcontext.Store, loader scenario.CustomScenarioLoader, limiter *media.Limiter, accountant media.Accountant, modelEndpoint, modelAPIKey string, logger commons.Logger) *Server {
	return &Server{
		contexts:      contexts,
		loader:        loader,
		limiter:       limiter,
		accountant:    accountant,
		modelEndpoint: modelEndpoint,
		modelAPIKey:   modelAPIKey,
		rootCtx:       rootCtx,
		logger:        logger,
	}
}

// Handle upgrades the connection and drives the bridge to completion. It
// always releases the concurrent-session slot the inbound webhook
// reserved (spec.md §5's addition), regardless of how the call ends.
func (s *Server) Handle(c *gin.Context) {
	defer s.limiter.Release()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("telephonyws: upgrade failed", "error", err)
		return
	}

	start, err := awaitStartFrame(conn)
	if err != nil {
		s.logger.Warnw("telephonyws: no start frame", "error", err)
		conn.Close()
		return
	}

	cc, err := s.contexts.Claim(c.Request.Context(), start.CallSid)
	if err != nil {
		s.logger.Warnw("telephonyws: claim failed", "call_sid", start.CallSid, "error", err)
		conn.Close()
		return
	}

	sc, err := scenario.Resolve(s.loader, cc.ScenarioRef, scenario.Caller{ID: cc.Owner})
	if err != nil {
		s.logger.Warnw("telephonyws: scenario resolve failed", "scenario_ref", cc.ScenarioRef, "error", err)
		s.failSetup(cc.ContextID)
		conn.Close()
		return
	}

	model, err := media.DialModel(s.rootCtx, s.modelEndpoint, s.modelAPIKey)
	if err != nil {
		s.logger.Warnw("telephonyws: model dial failed", "error", err)
		s.failSetup(cc.ContextID)
		conn.Close()
		return
	}

	session := media.NewSession(s.rootCtx, media.SessionConfig{
		ContextID:      cc.ContextID,
		StreamSid:      start.StreamSid,
		Scenario:       sc,
		DurationCapSec: cc.DurationCapSec,
		Provider:       conn,
		Model:          model,
		Accountant:     s.accountant,
		Logger:         s.logger,
	})

	if err := session.Run(); err != nil {
		s.logger.Warnw("telephonyws: session ended with error", "context_id", cc.ContextID, "error", err)
	}
}

// failSetup marks the call failed when the bridge never managed to open
// the model session at all (spec.md §4.5's "Model WS open fails" case) —
// the TwiML has already been answered, so the only recourse is to
// finalize the call record the same way the post-call webhook would.
func (s *Server) failSetup(contextID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.accountant.HandleStatusCallback(ctx, contextID, "failed", 0); err != nil {
		s.logger.Warnw("telephonyws: failed to mark setup failure", "context_id", contextID, "error", err)
	}
}

func awaitStartFrame(conn *websocket.Conn) (*media.ProviderStart, error) {
	conn.SetReadDeadline(time.Now().Add(startFrameTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var frame media.ProviderInFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Event == "start" && frame.Start != nil {
			return frame.Start, nil
		}
	}
}
