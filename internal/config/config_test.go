package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesOverridesOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p3bridge.yml")
	yamlDoc := `
post:
  baseUrl: https://race-control.example/api
  retries: 3
defaults:
  mode: udp
  udpListenPort: 6000
logging:
  suppressStatus: true
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Post.BaseURL != "https://race-control.example/api" {
		t.Fatalf("BaseURL = %q", cfg.Post.BaseURL)
	}
	if cfg.Post.Retries != 3 {
		t.Fatalf("Retries = %d, want 3 (overridden)", cfg.Post.Retries)
	}
	if cfg.Post.RetryDelayMs != 500 {
		t.Fatalf("RetryDelayMs = %d, want 500 (default retained)", cfg.Post.RetryDelayMs)
	}
	if cfg.Defaults.Mode != "udp" {
		t.Fatalf("Mode = %q, want udp", cfg.Defaults.Mode)
	}
	if cfg.Defaults.TCPPort != 5403 {
		t.Fatalf("TCPPort = %d, want 5403 (default retained)", cfg.Defaults.TCPPort)
	}
	if !cfg.Logging.SuppressStatus {
		t.Fatalf("SuppressStatus = false, want true")
	}
}

func TestLoadRejectsInvalidBaseURLWhenPostEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p3bridge.yml")
	yamlDoc := `
post:
  enabled: true
  baseUrl: "not a url"
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a syntactically invalid post.baseUrl")
	}
}

func TestLoadIgnoresInvalidBaseURLWhenPostDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p3bridge.yml")
	yamlDoc := `
post:
  enabled: false
  baseUrl: "not a url"
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v, want no error when post is disabled", err)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestDefaultsMatchSpecValues(t *testing.T) {
	d := Defaults()
	if d.Defaults.TCPPort != 5403 {
		t.Fatalf("TCPPort default = %d, want 5403", d.Defaults.TCPPort)
	}
	if d.Defaults.UDPListenPort != 5303 {
		t.Fatalf("UDPListenPort default = %d, want 5303", d.Defaults.UDPListenPort)
	}
	if d.Decoder.Reconnect.BackoffFactor != 1.8 {
		t.Fatalf("BackoffFactor default = %v, want 1.8", d.Decoder.Reconnect.BackoffFactor)
	}
	if d.Post.Retries != 5 {
		t.Fatalf("Retries default = %d, want 5", d.Post.Retries)
	}
}
