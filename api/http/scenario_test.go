// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/internal/entity"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/pkg/commons"
	"github.com/fluentcall/voicecore/pkg/connectors"
)

// testOwnerHeader lets each request pick the authenticated owner the real
// BearerAuth middleware would otherwise derive from the token, so a single
// engine (and its one backing sqlite store) can exercise ownership checks
// across more than one caller.
const testOwnerHeader = "X-Test-Owner"

func newTestScenarioEngine(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := connectors.NewSqliteConnector("")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entity.CustomScenario{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	store := scenario.NewStore(db, commons.NewNop(), func() int64 { return 1000 })
	api := NewScenarioAPI(store, commons.NewNop())

	engine := gin.New()
	injectOwner := func(c *gin.Context) {
		owner, _ := strconv.ParseUint(c.GetHeader(testOwnerHeader), 10, 64)
		c.Set(ownerContextKey, owner)
		c.Next()
	}
	group := engine.Group("/realtime/custom-scenario", injectOwner)
	group.POST("", api.Create)
	group.GET("", api.List)
	group.PATCH("/:id", api.Update)
	group.DELETE("/:id", api.Delete)
	return engine
}

func createScenario(t *testing.T, engine *gin.Engine, owner uint64) scenario.Scenario {
	t.Helper()
	body, _ := json.Marshal(createScenarioRequest{
		Persona:     "a patient billing support agent",
		Prompt:      "help the caller resolve a billing dispute calmly",
		Voice:       scenario.VoiceCoral,
		Temperature: 0.6,
	})
	req := httptest.NewRequest(http.MethodPost, "/realtime/custom-scenario", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testOwnerHeader, strconv.FormatUint(owner, 10))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created scenario.Scenario
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	return created
}

func TestScenarioCreateAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)
	created := createScenario(t, engine, 11)

	listReq := httptest.NewRequest(http.MethodGet, "/realtime/custom-scenario", nil)
	listReq.Header.Set(testOwnerHeader, "11")
	listRec := httptest.NewRecorder()
	engine.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200: %s", listRec.Code, listRec.Body.String())
	}
	var listBody struct {
		Scenarios []scenario.Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Scenarios) != 1 || listBody.Scenarios[0].ID != created.ID {
		t.Fatalf("got %+v, want one scenario matching %q", listBody.Scenarios, created.ID)
	}
}

func TestScenarioListIsOwnerScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)
	createScenario(t, engine, 11)

	listReq := httptest.NewRequest(http.MethodGet, "/realtime/custom-scenario", nil)
	listReq.Header.Set(testOwnerHeader, "999")
	listRec := httptest.NewRecorder()
	engine.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200: %s", listRec.Code, listRec.Body.String())
	}
	var listBody struct {
		Scenarios []scenario.Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Scenarios) != 0 {
		t.Fatalf("got %d scenarios, want 0 for an unrelated owner", len(listBody.Scenarios))
	}
}

func TestScenarioCreateRejectsShortPersona(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)

	body, _ := json.Marshal(createScenarioRequest{
		Persona:     "short",
		Prompt:      "help the caller resolve a billing dispute calmly",
		Voice:       scenario.VoiceCoral,
		Temperature: 0.6,
	})
	req := httptest.NewRequest(http.MethodPost, "/realtime/custom-scenario", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testOwnerHeader, "11")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestScenarioUpdateRejectsNonOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)
	created := createScenario(t, engine, 11)

	persona := "a very different patient billing support agent"
	patchBody, _ := json.Marshal(updateScenarioRequest{Persona: &persona})
	patchReq := httptest.NewRequest(http.MethodPatch, "/realtime/custom-scenario/"+created.ID, bytes.NewReader(patchBody))
	patchReq.Header.Set("Content-Type", "application/json")
	patchReq.Header.Set(testOwnerHeader, "999")
	patchRec := httptest.NewRecorder()
	engine.ServeHTTP(patchRec, patchReq)

	if patchRec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402 (KindPolicy forbidden scenario): %s", patchRec.Code, patchRec.Body.String())
	}
}

func TestScenarioUpdateByOwnerSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)
	created := createScenario(t, engine, 11)

	persona := "a very different patient billing support agent"
	patchBody, _ := json.Marshal(updateScenarioRequest{Persona: &persona})
	patchReq := httptest.NewRequest(http.MethodPatch, "/realtime/custom-scenario/"+created.ID, bytes.NewReader(patchBody))
	patchReq.Header.Set("Content-Type", "application/json")
	patchReq.Header.Set(testOwnerHeader, "11")
	patchRec := httptest.NewRecorder()
	engine.ServeHTTP(patchRec, patchReq)

	if patchRec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", patchRec.Code, patchRec.Body.String())
	}
	var updated scenario.Scenario
	if err := json.Unmarshal(patchRec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Persona != persona {
		t.Fatalf("persona = %q, want %q", updated.Persona, persona)
	}
}

func TestScenarioDeleteByOwnerSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)
	created := createScenario(t, engine, 11)

	delReq := httptest.NewRequest(http.MethodDelete, "/realtime/custom-scenario/"+created.ID, nil)
	delReq.Header.Set(testOwnerHeader, "11")
	delRec := httptest.NewRecorder()
	engine.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204: %s", delRec.Code, delRec.Body.String())
	}
}

func TestScenarioDeleteRejectsNonOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestScenarioEngine(t)
	created := createScenario(t, engine, 11)

	delReq := httptest.NewRequest(http.MethodDelete, "/realtime/custom-scenario/"+created.ID, nil)
	delReq.Header.Set(testOwnerHeader, "999")
	delRec := httptest.NewRecorder()
	engine.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %s", delRec.Code, delRec.Body.String())
	}
}
