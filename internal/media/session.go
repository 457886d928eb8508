// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package media implements the Media Bridge (spec.md §4.5): the per-call
// session that relays audio between the telephony provider's media-stream
// WebSocket and the model's real-time WebSocket, applies barge-in, and
// enforces the duration cap. It is the single hardest component in the
// core; one Session is the sole owner of both sockets and the five
// cooperating tasks spec.md names, exactly as the teacher's
// websocketExecutor owns one connection and its listener goroutine.
package media

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/pkg/commons"
)

// providerWriteTimeout bounds every write to the telephony socket; a
// stalled write past this is treated as a dead connection and torn down,
// never as a dropped frame (spec.md §4.5's backpressure rule).
const providerWriteTimeout = 5 * time.Second

// wrapupWindow is how far from the duration cap the watchdog injects its
// one-time wrap-up nudge.
const wrapupWindow = 30 * time.Second

// interruptCooldown is the brief pause after a barge-in before the
// interrupt handler re-arms (spec.md §4.5).
const interruptCooldown = 500 * time.Millisecond

// modelErrorDrain is how long the outbound task waits after a model error
// frame before cancelling the session. It reads no further model frames
// during that wait, so no more model audio reaches the provider.
const modelErrorDrain = time.Second

const wrapupInstruction = "Wrap up the conversation naturally within the next few seconds; the caller's time is almost up."

// ProviderConn is the subset of *websocket.Conn the Session needs on the
// telephony side. Narrowed to an interface so a fake can stand in for
// tests, the same role the teacher's establishConnection-bound
// *websocket.Conn plays in production.
type ProviderConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Model is the subset of ModelClient's surface a Session drives. Letting
// tests substitute a fake here is what makes the five-task orchestration
// unit-testable without a real model endpoint.
type Model interface {
	SendSessionUpdate(userName string, sc scenario.Scenario) error
	SendBufferAppend(audioB64 string) error
	SendBufferCommit() error
	SendResponseCreate(instructions string) error
	SendItemTruncate(itemID string, audioEndMS int) error
	ReadEvent() (eventType string, raw []byte, err error)
	Close() error
}

// Accountant is the narrow slice of accounting.Accountant a Session needs
// to finalize a call if the provider's status-callback webhook never
// arrives (spec.md §4.5 step 5: "record the call duration if not already
// recorded"). Because HandleStatusCallback is idempotent and a no-op
// against an already-terminal CallRecord, calling it from here is safe
// even when the real webhook wins the race.
type Accountant interface {
	HandleStatusCallback(ctx context.Context, callSid, callStatus string, callDurationSec int) error
}

// SessionConfig is everything a Session needs at construction. ContextID
// is the provider call-sid (CallContext's primary key); StreamSid is the
// media-stream's own id, used only in outbound frames.
type SessionConfig struct {
	ContextID      string
	StreamSid      string
	Scenario       scenario.Scenario
	UserName       string
	DurationCapSec int
	Provider       ProviderConn
	Model          Model
	Accountant     Accountant
	Logger         commons.Logger
}

// Session is the single owner of one call's two sockets and five tasks.
// All mutable cross-task state (the barge-in bookkeeping) lives here,
// guarded by one mutex — spec.md §9's "no cycles in ownership" model.
type Session struct {
	contextID  string
	streamSid  string
	scenario   scenario.Scenario
	userName   string
	capSec     int
	provider   ProviderConn
	model      Model
	accountant Accountant
	logger     commons.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu                     sync.Mutex
	lastAssistantItemID    string
	responseStartTimestamp time.Time
	markSeq                int
	markQueue              []string
	capReached             bool

	providerWriteMu sync.Mutex
	startedAt       time.Time

	// interruptGate holds one token when the session is armed to process a
	// barge-in; runOutbound takes it before truncating so a second
	// speech_started arriving mid-cooldown is ignored. interruptCh is how
	// runOutbound hands the just-processed barge-in to runInterrupt, which
	// owns re-filling the gate after interruptCooldown.
	interruptGate chan struct{}
	interruptCh   chan struct{}
}

// NewSession builds a Session rooted under rootCtx. rootCtx is typically
// the process's shutdown context, not the HTTP upgrade request's context
// (which ends when the handler returns) — the bridge must outlive the
// handshake.
func NewSession(rootCtx context.Context, cfg SessionConfig) *Session {
	ctx, cancel := context.WithCancel(rootCtx)
	gate := make(chan struct{}, 1)
	gate <- struct{}{} // armed from the start
	return &Session{
		contextID:     cfg.ContextID,
		streamSid:     cfg.StreamSid,
		scenario:      cfg.Scenario,
		userName:      cfg.UserName,
		capSec:        cfg.DurationCapSec,
		provider:      cfg.Provider,
		model:         cfg.Model,
		accountant:    cfg.Accountant,
		logger:        cfg.Logger,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		interruptGate: gate,
		interruptCh:   make(chan struct{}, 1),
	}
}

// Run seeds the model session and drives the five cooperating tasks to
// completion, then finalizes the call's recorded duration. It blocks
// until the session ends (duration cap, either socket closing, a model
// error frame, or external shutdown).
func (s *Session) Run() error {
	s.startedAt = s.now()
	defer s.cancel()

	if err := s.model.SendSessionUpdate(s.userName, s.scenario); err != nil {
		s.finalize(true, 0)
		return err
	}

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { defer s.cancel(); return s.runInbound(gctx) })
	g.Go(func() error { defer s.cancel(); return s.runOutbound(gctx) })
	g.Go(func() error { defer s.cancel(); return s.runWatchdog(gctx) })
	g.Go(func() error { defer s.cancel(); return s.runInterrupt(gctx) })
	g.Go(func() error { return s.runSupervisor(gctx) })

	err := g.Wait()

	s.mu.Lock()
	capReached := s.capReached
	s.mu.Unlock()

	duration := capSecOrElapsed(capReached, s.capSec, s.now().Sub(s.startedAt))
	s.finalize(err != nil, duration)
	return err
}

func capSecOrElapsed(capReached bool, capSec int, elapsed time.Duration) int {
	if capReached {
		return capSec
	}
	secs := int(elapsed / time.Second)
	if secs > capSec {
		return capSec
	}
	return secs
}

// finalize is the fallback-recording safety net: best-effort, never
// blocks shutdown on its outcome. The real status-callback webhook is
// expected to land first in the common case; this only matters when it
// never does.
func (s *Session) finalize(failed bool, durationSec int) {
	status := "completed"
	if failed {
		status = "failed"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.accountant.HandleStatusCallback(ctx, s.contextID, status, durationSec); err != nil {
		s.logger.Warnw("media: fallback finalize failed", "context_id", s.contextID, "error", err)
	}
}

// runInbound reads provider frames and forwards audio to the model,
// preserving per-direction order (spec.md §4.5's inbound task).
func (s *Session) runInbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, data, err := s.provider.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return apperr.Wrap(apperr.KindTransport, apperr.CodeSocketClosed, "read provider frame", err)
		}

		var frame ProviderInFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warnw("media: malformed provider frame", "error", err)
			continue
		}

		switch frame.Event {
		case "media":
			if frame.Media == nil || frame.Media.Payload == "" {
				continue
			}
			if err := s.model.SendBufferAppend(frame.Media.Payload); err != nil {
				return err
			}
		case "mark":
			s.popMark()
		case "stop":
			if err := s.model.SendBufferCommit(); err != nil {
				return err
			}
			return s.model.SendResponseCreate("")
		}
	}
}

// runOutbound reads model frames, forwards audio deltas to the provider,
// and truncates + clears in place on a barge-in — it is the sole reader
// of the model socket, so doing the ordering-sensitive work here instead
// of handing it to a second goroutine is what lets invariant 5 hold
// (spec.md §4.5): the clear is always written before this loop goes on
// to forward the next delta. Only the cooldown/re-arm timing is handed
// off, to runInterrupt.
func (s *Session) runOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		eventType, raw, err := s.model.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if eventType == "" {
			return nil // model closed normally
		}

		switch eventType {
		case "response.audio.delta":
			var delta modelAudioDelta
			if err := json.Unmarshal(raw, &delta); err != nil {
				s.logger.Warnw("media: malformed audio delta", "error", err)
				continue
			}
			s.mu.Lock()
			s.lastAssistantItemID = delta.ItemID
			if s.responseStartTimestamp.IsZero() {
				s.responseStartTimestamp = s.now()
			}
			s.mu.Unlock()

			if err := s.writeProviderMedia(delta.Delta); err != nil {
				return err
			}
			if err := s.writeProviderMark(); err != nil {
				return err
			}

		case "input_audio_buffer.speech_started":
			// Truncate + clear run inline, on the same goroutine that reads
			// model frames, so the clear is written to the provider before
			// this loop ever reads the next response.audio.delta — spec.md
			// §4.5 / invariant 5 require the clear to be observable before
			// any later delta, and a handoff to another goroutine can't
			// guarantee that ordering.
			s.mu.Lock()
			itemID := s.lastAssistantItemID
			start := s.responseStartTimestamp
			s.mu.Unlock()

			if itemID == "" {
				continue
			}

			select {
			case <-s.interruptGate:
			default:
				continue // still cooling down from the previous barge-in
			}

			audioEndMS := 0
			if !start.IsZero() {
				audioEndMS = int(s.now().Sub(start) / time.Millisecond)
			}
			if err := s.model.SendItemTruncate(itemID, audioEndMS); err != nil {
				s.logger.Warnw("media: truncate failed", "error", err)
			}
			if err := s.writeProviderFrame(providerClearOut{Event: "clear", StreamSid: s.streamSid}); err != nil {
				return err
			}

			s.mu.Lock()
			s.lastAssistantItemID = ""
			s.responseStartTimestamp = time.Time{}
			s.mu.Unlock()

			select {
			case s.interruptCh <- struct{}{}:
			default:
			}

		case "response.done":
			s.mu.Lock()
			s.lastAssistantItemID = ""
			s.responseStartTimestamp = time.Time{}
			s.mu.Unlock()

		case "error":
			var ef modelErrorFrame
			_ = json.Unmarshal(raw, &ef)
			s.logger.Warnw("media: model error frame", "message", ef.Error.Message)
			time.Sleep(modelErrorDrain)
			return apperr.New(apperr.KindExternal, apperr.CodeModelErrorFrame, ef.Error.Message)
		}
	}
}

// runWatchdog enforces the hard duration cap and injects a one-time
// wrap-up nudge 30s before it (spec.md §4.5).
func (s *Session) runWatchdog(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	capDuration := time.Duration(s.capSec) * time.Second
	wrapupSent := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			elapsed := s.now().Sub(s.startedAt)
			if !wrapupSent && capDuration-elapsed <= wrapupWindow {
				wrapupSent = true
				if err := s.model.SendResponseCreate(wrapupInstruction); err != nil {
					s.logger.Warnw("media: wrap-up nudge failed", "error", err)
				}
			}
			if elapsed >= capDuration {
				s.mu.Lock()
				s.capReached = true
				s.mu.Unlock()
				return nil
			}
		}
	}
}

// runInterrupt owns only the cooldown/re-arm half of barge-in handling:
// runOutbound does the ordering-sensitive truncate+clear inline and hands
// off the just-processed barge-in here, so this task never touches either
// socket; it waits out interruptCooldown and then returns the gate token,
// letting runOutbound process the next speech_started (spec.md §4.5).
func (s *Session) runInterrupt(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.interruptCh:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interruptCooldown):
			}
			select {
			case s.interruptGate <- struct{}{}:
			default:
			}
		}
	}
}

// runSupervisor closes both sockets the instant the session context is
// cancelled, unblocking any task parked in a blocking read (spec.md
// §4.5's fifth task).
func (s *Session) runSupervisor(ctx context.Context) error {
	<-ctx.Done()
	_ = s.provider.Close()
	_ = s.model.Close()
	return nil
}

func (s *Session) popMark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.markQueue) > 0 {
		s.markQueue = s.markQueue[1:]
	}
}

func (s *Session) writeProviderMedia(payloadB64 string) error {
	return s.writeProviderFrame(providerMediaOut{
		Event:     "media",
		StreamSid: s.streamSid,
		Media:     providerMediaOutP{Payload: payloadB64},
	})
}

func (s *Session) writeProviderMark() error {
	s.mu.Lock()
	s.markSeq++
	name := markName(s.markSeq)
	s.markQueue = append(s.markQueue, name)
	s.mu.Unlock()

	return s.writeProviderFrame(providerMarkOut{
		Event:     "mark",
		StreamSid: s.streamSid,
		Mark:      providerMarkOutP{Name: name},
	})
}

func markName(seq int) string {
	return "responsePart" + strconv.Itoa(seq)
}

func (s *Session) writeProviderFrame(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, apperr.CodeStateInconsistent, "marshal provider frame", err)
	}

	s.providerWriteMu.Lock()
	defer s.providerWriteMu.Unlock()
	if err := s.provider.SetWriteDeadline(s.now().Add(providerWriteTimeout)); err != nil {
		return apperr.Wrap(apperr.KindTransport, apperr.CodeSocketTimeout, "set provider write deadline", err)
	}
	if err := s.provider.WriteMessage(websocket.TextMessage, data); err != nil {
		return apperr.Wrap(apperr.KindTransport, apperr.CodeSocketTimeout, "write provider frame", err)
	}
	return nil
}
