// Package config loads, persists, and edits the JSON configuration file.
// Defaults are written on first run; environment variables take highest
// precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	WorkspaceDir string `json:"workspace_dir"`
	LogLevel     string `json:"log_level"`
	HTTP         struct {
		Listen string `json:"listen"`
	} `json:"http"`
	LLM struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		Temperature      float32 `json:"temperature"`
		TopP             float32 `json:"top_p"`
		TopK             int     `json:"top_k"`
		MaxOutputTokens  int     `json:"max_output_tokens"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Preview struct {
		PythonBin             string `json:"python_bin"`
		BasePort              int    `json:"base_port"`
		MaxPortAttempts       int    `json:"max_port_attempts"`
		StartupGraceSeconds   int    `json:"startup_grace_seconds"`
		TerminateGraceSeconds int    `json:"terminate_grace_seconds"`
		KillGraceSeconds      int    `json:"kill_grace_seconds"`
	} `json:"preview"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		WorkspaceDir: filepath.Join(os.Getenv("HOME"), ".scriptforge", "workspace"),
	}
	cfg.LogLevel = "info"
	cfg.HTTP.Listen = "127.0.0.1:8501"
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-1.5-pro-latest"
	cfg.LLM.Temperature = 0.4
	cfg.LLM.TopP = 1.0
	cfg.LLM.TopK = 32
	cfg.LLM.MaxOutputTokens = 8192
	cfg.LLM.MaxContextTokens = 32768
	cfg.LLM.OutputReserve = 8192
	cfg.Preview.PythonBin = "python3"
	cfg.Preview.BasePort = 8502
	cfg.Preview.MaxPortAttempts = 100
	cfg.Preview.StartupGraceSeconds = 5
	cfg.Preview.TerminateGraceSeconds = 3
	cfg.Preview.KillGraceSeconds = 2

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.LLM.Provider == "gemini" {
		cfg.LLM.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" && cfg.LLM.Provider == "gemini" {
		cfg.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = key
	}
	if dir := os.Getenv("SCRIPTFORGE_WORKSPACE"); dir != "" {
		cfg.WorkspaceDir = dir
	}
	if listen := os.Getenv("SCRIPTFORGE_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}

	return cfg, nil
}

// Save writes the config to path atomically, creating the parent directory
// if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config into a nested map keyed by JSON field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns the config flattened to dot-separated keys. When mask
// is true, secret values are masked for display.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// readFileMap reads the raw config file as a nested map, preserving keys
// the Config struct does not know about.
func readFileMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

// GetValue returns the value at the dot-separated key from the config file,
// creating the file with defaults first if it does not exist.
func GetValue(path, key string) (any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if _, err := Load(path); err != nil {
			return nil, err
		}
	}
	m, err := readFileMap(path)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates the dot-separated key in the config file. The value is
// parsed as JSON when possible (numbers, booleans), otherwise stored as a
// string. The file must already exist.
func SetValue(path, key, value string) error {
	m, err := readFileMap(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed

	nested := Unflatten(flat)
	data, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
