// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package telephonyws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fluentcall/voicecore/internal/callcontext"
	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/media"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAccountant records the terminal status telephonyws reports, the same
// narrow media.Accountant surface internal/media/session_test.go's
// fakeAccountant implements.
type fakeAccountant struct {
	mu     sync.Mutex
	calls  int
	status string
}

func (f *fakeAccountant) HandleStatusCallback(_ context.Context, _ string, status string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.status = status
	return nil
}

// emptyLoader never resolves a custom scenario; the tests below only drive
// the built-in "default" scenario, which Resolve serves without the loader.
type emptyLoader struct{}

func (emptyLoader) Get(id string) (*scenario.Scenario, uint64, error) { return nil, 0, nil }

// newStubModelServer runs a minimal realtime-model stand-in: it upgrades
// the connection, reads the session.update DialModel's caller always sends
// first, answers with a session.created ack, then reads until the client
// hangs up.
func newStubModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage() // session.update
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session.created"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv
}

func newTestServer(t *testing.T) (*Server, *fakeAccountant, connectors.PostgresConnector, *httptest.Server) {
	t.Helper()
	db, err := connectors.NewSqliteConnector("")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entity.CallContext{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	contexts := callcontext.New(db, commons.NewNop())

	modelSrv := newStubModelServer(t)
	modelWSURL := "ws" + strings.TrimPrefix(modelSrv.URL, "http")

	accountant := &fakeAccountant{}
	limiter := media.NewLimiter(1)
	server := New(context.Background(), contexts, emptyLoader{}, limiter, accountant, modelWSURL, "test-api-key", commons.NewNop())
	return server, accountant, db, modelSrv
}

func TestHandleRunsSessionToCompletionOnProviderStop(t *testing.T) {
	server, accountant, db, modelSrv := newTestServer(t)
	defer modelSrv.Close()

	ctx := context.Background()
	if err := db.DB(ctx).Create(&entity.CallContext{
		ContextID:      "CA1",
		Owner:          1,
		E164:           "+15551234567",
		ScenarioRef:    "default",
		DurationCapSec: 60,
		Status:         entity.CallContextQueued,
	}).Error; err != nil {
		t.Fatalf("seed call context: %v", err)
	}

	engine := gin.New()
	engine.GET("/media-stream/:scenario", server.Handle)
	bridgeSrv := httptest.NewServer(engine)
	defer bridgeSrv.Close()
	bridgeWSURL := "ws" + strings.TrimPrefix(bridgeSrv.URL, "http") + "/media-stream/default"

	conn, _, err := websocket.DefaultDialer.Dial(bridgeWSURL, nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	defer conn.Close()

	start := map[string]interface{}{"event": "start", "start": map[string]string{"streamSid": "MZ1", "callSid": "CA1"}}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start frame: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{"event": "stop"}); err != nil {
		t.Fatalf("write stop frame: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		accountant.mu.Lock()
		calls := accountant.calls
		accountant.mu.Unlock()
		if calls > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	accountant.mu.Lock()
	defer accountant.mu.Unlock()
	if accountant.calls != 1 || accountant.status != "completed" {
		t.Fatalf("got calls=%d status=%q, want 1/completed", accountant.calls, accountant.status)
	}

	var cc entity.CallContext
	if err := db.DB(ctx).Where("context_id = ?", "CA1").First(&cc).Error; err != nil {
		t.Fatalf("reload call context: %v", err)
	}
	if cc.Status != entity.CallContextClaimed {
		t.Errorf("call context status = %q, want claimed (telephonyws itself never advances past claim)", cc.Status)
	}
}

func TestHandleRejectsUnknownScenarioAfterClaim(t *testing.T) {
	server, accountant, db, modelSrv := newTestServer(t)
	defer modelSrv.Close()

	ctx := context.Background()
	if err := db.DB(ctx).Create(&entity.CallContext{
		ContextID:      "CA2",
		Owner:          1,
		E164:           "+15551234567",
		ScenarioRef:    "no_such_scenario",
		DurationCapSec: 60,
		Status:         entity.CallContextQueued,
	}).Error; err != nil {
		t.Fatalf("seed call context: %v", err)
	}

	engine := gin.New()
	engine.GET("/media-stream/:scenario", server.Handle)
	bridgeSrv := httptest.NewServer(engine)
	defer bridgeSrv.Close()
	bridgeWSURL := "ws" + strings.TrimPrefix(bridgeSrv.URL, "http") + "/media-stream/no_such_scenario"

	conn, _, err := websocket.DefaultDialer.Dial(bridgeWSURL, nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	defer conn.Close()

	start := map[string]interface{}{"event": "start", "start": map[string]string{"streamSid": "MZ2", "callSid": "CA2"}}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start frame: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		accountant.mu.Lock()
		calls := accountant.calls
		accountant.mu.Unlock()
		if calls > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	accountant.mu.Lock()
	defer accountant.mu.Unlock()
	if accountant.calls != 1 || accountant.status != "failed" {
		t.Fatalf("got calls=%d status=%q, want 1/failed (unresolvable scenario)", accountant.calls, accountant.status)
	}
}
