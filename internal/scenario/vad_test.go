// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package scenario

import (
	"encoding/json"
	"testing"
)

func TestSelectVADForScenarioName(t *testing.T) {
	cases := []struct {
		name string
		want Eagerness
	}{
		{"therapy_session", EagernessLow},
		{"a counseling call", EagernessLow},
		{"job interview prep", EagernessLow},
		{"casual conversation", EagernessLow},
		{"sister_emergency", EagernessHigh},
		{"need urgent help", EagernessHigh},
		{"customer support line", EagernessHigh},
		{"yacht_party", EagernessAuto},
		{"gameshow_host", EagernessAuto},
	}
	for _, tc := range cases {
		p := SelectVADForScenarioName(tc.name)
		if p.Mode != VADModeSemantic {
			t.Errorf("SelectVADForScenarioName(%q) mode = %q, want semantic_vad", tc.name, p.Mode)
		}
		if p.Eagerness != tc.want {
			t.Errorf("SelectVADForScenarioName(%q) eagerness = %q, want %q", tc.name, p.Eagerness, tc.want)
		}
	}
}

func TestApplyVADOverrideNil(t *testing.T) {
	base := DefaultServerVAD()
	got, err := ApplyVADOverride(base, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != base {
		t.Errorf("got %+v, want base unchanged %+v", got, base)
	}
}

func TestApplyVADOverrideServerValid(t *testing.T) {
	threshold := 0.7
	padding := 500
	silence := 800
	got, err := ApplyVADOverride(DefaultServerVAD(), &VADOverride{
		Mode:              "server_vad",
		Threshold:         &threshold,
		PrefixPaddingMS:   &padding,
		SilenceDurationMS: &silence,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Threshold != 0.7 || got.PrefixPaddingMS != 500 || got.SilenceDurationMS != 800 {
		t.Errorf("override not applied: %+v", got)
	}
}

func TestApplyVADOverrideServerOutOfRange(t *testing.T) {
	bad := 1.5
	_, err := ApplyVADOverride(DefaultServerVAD(), &VADOverride{Mode: "server_vad", Threshold: &bad})
	if err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}

func TestApplyVADOverrideSemanticValid(t *testing.T) {
	got, err := ApplyVADOverride(DefaultServerVAD(), &VADOverride{Mode: "semantic_vad", Eagerness: "high"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Mode != VADModeSemantic || got.Eagerness != EagernessHigh {
		t.Errorf("got %+v, want semantic/high", got)
	}
}

func TestApplyVADOverrideUnknownMode(t *testing.T) {
	_, err := ApplyVADOverride(DefaultServerVAD(), &VADOverride{Mode: "nonsense"})
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestApplyVADOverrideUnknownEagerness(t *testing.T) {
	_, err := ApplyVADOverride(DefaultServerVAD(), &VADOverride{Mode: "semantic_vad", Eagerness: "extreme"})
	if err == nil {
		t.Fatal("expected error for unknown eagerness")
	}
}

func TestVADPolicyMarshalJSONUsesTypeDiscriminator(t *testing.T) {
	raw, err := json.Marshal(SemanticVAD(EagernessHigh))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "semantic_vad" || decoded["eagerness"] != "high" {
		t.Errorf("got %v, want type=semantic_vad eagerness=high", decoded)
	}
	if _, ok := decoded["threshold"]; ok {
		t.Errorf("server_vad-only field leaked into semantic encoding: %v", decoded)
	}
}
