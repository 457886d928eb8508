// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluentcall/voicecore/internal/apperr"
	"github.com/fluentcall/voicecore/internal/scenario"
	"github.com/fluentcall/voicecore/pkg/commons"
)

// ScenarioAPI backs the /realtime/custom-scenario* CRUD group (spec.md
// §4.1). Every operation is owner-scoped; scenario.Store itself re-checks
// ownership on Update/Delete since those bypass Resolve.
type ScenarioAPI struct {
	store  *scenario.Store
	logger commons.Logger
}

// NewScenarioAPI builds a ScenarioAPI.
func NewScenarioAPI(store *scenario.Store, logger commons.Logger) *ScenarioAPI {
	return &ScenarioAPI{store: store, logger: logger}
}

type createScenarioRequest struct {
	Persona     string          `json:"persona" binding:"required"`
	Prompt      string          `json:"prompt" binding:"required"`
	Voice       scenario.Voice  `json:"voice" binding:"required"`
	Temperature float64         `json:"temperature"`
	VAD         *vadOverrideDTO `json:"vad,omitempty"`
}

// vadOverrideDTO mirrors scenario.VADOverride's optional per-field
// overrides over the wire.
type vadOverrideDTO struct {
	Mode              string   `json:"mode,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   *int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS *int     `json:"silence_duration_ms,omitempty"`
	Eagerness         string   `json:"eagerness,omitempty"`
}

func (d *vadOverrideDTO) toVADOverride() *scenario.VADOverride {
	if d == nil {
		return nil
	}
	return &scenario.VADOverride{
		Mode:              d.Mode,
		Threshold:         d.Threshold,
		PrefixPaddingMS:   d.PrefixPaddingMS,
		SilenceDurationMS: d.SilenceDurationMS,
		Eagerness:         d.Eagerness,
	}
}

// Create creates a custom scenario owned by the authenticated caller.
func (s *ScenarioAPI) Create(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	var req createScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, apperr.CodeBadParameters, "invalid request body", err))
		return
	}

	caller := scenario.Caller{ID: owner}
	sc, err := s.store.Create(c.Request.Context(), caller, req.Persona, req.Prompt, req.Voice, req.Temperature, req.VAD.toVADOverride())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

// List returns every custom scenario owned by the authenticated caller.
func (s *ScenarioAPI) List(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	scenarios, err := s.store.ListFor(c.Request.Context(), scenario.Caller{ID: owner})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

type updateScenarioRequest struct {
	Persona     *string        `json:"persona,omitempty"`
	Prompt      *string        `json:"prompt,omitempty"`
	Voice       *scenario.Voice `json:"voice,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
}

// Update applies a partial patch to a caller-owned custom scenario.
func (s *ScenarioAPI) Update(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	var req updateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, apperr.CodeBadParameters, "invalid request body", err))
		return
	}

	patch := scenario.ScenarioPatch{
		Persona:     req.Persona,
		Prompt:      req.Prompt,
		Voice:       req.Voice,
		Temperature: req.Temperature,
	}
	sc, err := s.store.Update(c.Request.Context(), scenario.Caller{ID: owner}, c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// Delete removes a caller-owned custom scenario.
func (s *ScenarioAPI) Delete(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		writeError(c, apperr.New(apperr.KindAuthn, apperr.CodeInvalidToken, "missing authenticated caller"))
		return
	}

	if err := s.store.Delete(c.Request.Context(), scenario.Caller{ID: owner}, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
