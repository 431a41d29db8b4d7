package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "DEFAULT_DELAY_SECONDS", "GATEWAY_MODE", "UPLOAD_TTL", "FRONTEND_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "./data/test.db")
	t.Setenv("DEFAULT_DELAY_SECONDS", "20")
	t.Setenv("GATEWAY_MODE", "dryrun")
	t.Setenv("UPLOAD_TTL", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultDelay != 20*time.Second {
		t.Errorf("expected 20s default delay, got %v", cfg.DefaultDelay)
	}
	if cfg.Uploads.TTL != 24*time.Hour {
		t.Errorf("expected 24h upload TTL, got %v", cfg.Uploads.TTL)
	}
	if !cfg.IsDevelopment() {
		t.Error("empty FRONTEND_URL should be development")
	}
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("unexpected origins %v", got)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DEFAULT_DELAY_SECONDS", "abc")
	t.Setenv("GATEWAY_SEND_TIMEOUT", "soon")
	t.Setenv("GATEWAY_MODE", "dryrun")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultDelay != 20*time.Second {
		t.Errorf("expected fallback delay, got %v", cfg.DefaultDelay)
	}
	if cfg.Gateway.SendTimeout != 30*time.Second {
		t.Errorf("expected fallback send timeout, got %v", cfg.Gateway.SendTimeout)
	}
}

func TestLoad_RejectsUnknownGateway(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "live")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported gateway mode")
	}
}

func TestAllowedOrigins_Production(t *testing.T) {
	cfg := &Config{FrontendURL: "https://campaigns.example.com"}
	if cfg.IsDevelopment() {
		t.Fatal("expected production mode")
	}
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "https://campaigns.example.com" {
		t.Errorf("unexpected origins %v", got)
	}
}
