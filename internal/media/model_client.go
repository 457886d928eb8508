// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/scenario"
)

// modelHandshakeTimeout bounds the outbound dial to the model's real-time
// endpoint (spec.md §5).
const modelHandshakeTimeout = 5 * time.Second

// modelWriteTimeout bounds every write to the model socket; a write that
// stalls past this is a dead connection, never a lossy drop (spec.md
// §4.5's backpressure rule).
const modelWriteTimeout = 5 * time.Second

// modelReadLimit caps a single inbound frame, mirroring the teacher's
// establishConnection (10MB ceiling; real-time audio deltas are tiny by
// comparison, this just guards against a misbehaving peer).
const modelReadLimit = 10 * 1024 * 1024

// ModelClient wraps the outbound WebSocket to the speech model, grounded
// on the teacher's websocketExecutor (HandshakeTimeout dialer, a
// writeMu-guarded send path, SetReadLimit). Unlike the teacher's
// executor, frames are typed per spec.md §6's model-frame list rather
// than an application-agnostic WSRequest/WSResponse envelope.
type ModelClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialModel opens the outbound WebSocket and authenticates as the single
// shared model identity (spec.md §4.5 step 2: no per-user credentials).
func DialModel(ctx context.Context, endpoint, apiKey string) (*ModelClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: modelHandshakeTimeout}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, apperr.CodeModelFailure, "dial model websocket", err)
	}
	conn.SetReadLimit(modelReadLimit)
	return &ModelClient{conn: conn}, nil
}

func (m *ModelClient) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, apperr.CodeStateInconsistent, "marshal model frame", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.conn.SetWriteDeadline(time.Now().Add(modelWriteTimeout))
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return apperr.Wrap(apperr.KindTransport, apperr.CodeSocketTimeout, "write model frame", err)
	}
	return nil
}

// SendSessionUpdate seeds the session with the resolved scenario (spec.md
// §4.5 step 3).
func (m *ModelClient) SendSessionUpdate(userName string, sc scenario.Scenario) error {
	instructions := fmt.Sprintf("%s\n%s\n%s", systemMessage, sc.Persona, sc.Prompt)
	if userName != "" {
		instructions += fmt.Sprintf("\nThe caller's name is %s.", userName)
	}

	turnDetection, err := json.Marshal(sc.VAD)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, apperr.CodeStateInconsistent, "marshal vad policy", err)
	}

	return m.send(modelSessionUpdate{
		Type: "session.update",
		Session: modelSessionConfig{
			Instructions:      instructions,
			Voice:             string(sc.Voice),
			Temperature:       sc.Temperature,
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Modalities:        []string{"text", "audio"},
			TurnDetection:     turnDetection,
		},
	})
}

// SendBufferAppend forwards one inbound audio chunk (already base64).
func (m *ModelClient) SendBufferAppend(audioB64 string) error {
	return m.send(modelBufferAppend{Type: "input_audio_buffer.append", Audio: audioB64})
}

// SendBufferCommit closes the current input turn. It does not request a
// response; SendResponseCreate does that.
func (m *ModelClient) SendBufferCommit() error {
	return m.send(modelBufferCommit{Type: "input_audio_buffer.commit"})
}

// SendResponseCreate requests a model response, optionally steering it
// with short instructions (used by the watchdog's wrap-up nudge).
func (m *ModelClient) SendResponseCreate(instructions string) error {
	req := modelResponseCreate{Type: "response.create"}
	if instructions != "" {
		req.Response = &modelResponseConfig{Instructions: instructions}
	}
	return m.send(req)
}

// SendItemTruncate truncates the in-flight assistant item on barge-in
// (spec.md §4.5's interrupt handler).
func (m *ModelClient) SendItemTruncate(itemID string, audioEndMS int) error {
	return m.send(modelItemTruncate{
		Type:       "conversation.item.truncate",
		ItemID:     itemID,
		ContentIdx: 0,
		AudioEndMS: audioEndMS,
	})
}

// ReadEvent blocks for the next model frame, returning its type
// discriminator and the raw payload for per-type decoding by the caller.
func (m *ModelClient) ReadEvent() (string, []byte, error) {
	_, data, err := m.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", nil, nil
		}
		return "", nil, apperr.Wrap(apperr.KindTransport, apperr.CodeSocketClosed, "read model frame", err)
	}
	var env modelEvent
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, apperr.Wrap(apperr.KindInternal, apperr.CodeStateInconsistent, "unmarshal model frame", err)
	}
	return env.Type, data, nil
}

// Close sends a normal-closure frame and tears down the connection.
func (m *ModelClient) Close() error {
	m.writeMu.Lock()
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()
	return m.conn.Close()
}

// systemMessage prefixes every scenario's persona/prompt (spec.md §4.5
// step 3).
const systemMessage = "You are a real-time voice agent for a phone call. Keep responses concise and speak naturally."
