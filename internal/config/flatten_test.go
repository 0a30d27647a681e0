package config

import (
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"llm": map[string]any{
			"provider": "gemini",
			"api_key":  "test-key-123",
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["llm.provider"] != "gemini" {
		t.Errorf("expected llm.provider=gemini, got %v", got["llm.provider"])
	}
	if got["llm.api_key"] != "test-key-123" {
		t.Errorf("expected llm.api_key=test-key-123, got %v", got["llm.api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
		},
	}
	got := Flatten(m)
	if got["a.b.c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", got["a.b.c"])
	}
	if len(got) != 1 {
		t.Errorf("expected 1 key, got %d", len(got))
	}
}

func TestFlatten_MixedTypes(t *testing.T) {
	m := map[string]any{
		"str":  "hello",
		"num":  42.0,
		"bool": true,
		"preview": map[string]any{
			"base_port": 8502.0,
		},
	}
	got := Flatten(m)
	if got["str"] != "hello" || got["num"] != 42.0 || got["bool"] != true {
		t.Errorf("unexpected scalar values: %v", got)
	}
	if got["preview.base_port"] != 8502.0 {
		t.Errorf("expected preview.base_port=8502, got %v", got["preview.base_port"])
	}
}

func TestUnflatten_Nested(t *testing.T) {
	flat := map[string]any{
		"llm.provider": "gemini",
		"llm.api_key":  "test-key-123",
		"log_level":    "info",
	}
	got := Unflatten(flat)
	llm, ok := got["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", got["llm"])
	}
	if llm["provider"] != "gemini" {
		t.Errorf("expected llm.provider=gemini, got %v", llm["provider"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"workspace_dir": "/home/test/.scriptforge/workspace",
		"log_level":     "debug",
		"llm": map[string]any{
			"provider": "gemini",
			"api_key":  "test-key-123456",
			"model":    "gemini-1.5-pro-latest",
		},
		"preview": map[string]any{
			"python_bin": "python3",
		},
	}

	flat := Flatten(original)
	restored := Unflatten(flat)

	if restored["workspace_dir"] != original["workspace_dir"] {
		t.Errorf("workspace_dir mismatch: %v != %v", restored["workspace_dir"], original["workspace_dir"])
	}
	llm := restored["llm"].(map[string]any)
	origLLM := original["llm"].(map[string]any)
	if llm["provider"] != origLLM["provider"] || llm["api_key"] != origLLM["api_key"] || llm["model"] != origLLM["model"] {
		t.Errorf("llm mismatch: %v != %v", llm, origLLM)
	}
	pv := restored["preview"].(map[string]any)
	if pv["python_bin"] != "python3" {
		t.Errorf("preview.python_bin mismatch: %v", pv["python_bin"])
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.provider": "gemini",
		"llm.api_key":  "test-key-123456",
		"log_level":    "info",
	}
	got := MaskSecrets(flat)

	if got["llm.provider"] != "gemini" {
		t.Errorf("expected llm.provider=gemini, got %v", got["llm.provider"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if got["llm.api_key"] != "***3456" {
		t.Errorf("expected llm.api_key=***3456, got %v", got["llm.api_key"])
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	flat := map[string]any{"llm.api_key": ""}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "" {
		t.Errorf("expected empty string to remain empty, got %v", got["llm.api_key"])
	}
}

func TestMaskSecrets_ShortSecret(t *testing.T) {
	flat := map[string]any{"llm.api_key": "ab"}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "***ab" {
		t.Errorf("expected ***ab for short secret, got %v", got["llm.api_key"])
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("llm.api_key") {
		t.Error("llm.api_key should be secret")
	}
	if IsSecretKey("llm.provider") {
		t.Error("llm.provider should not be secret")
	}
}
