package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEGACY360_ADDR", "")
	t.Setenv("LEGACY360_DB_PATH", "")
	t.Setenv("LEGACY360_INVITE_TTL_DAYS", "")
	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.InviteTTL != 14*24*time.Hour {
		t.Errorf("invite ttl = %v, want 14 days", cfg.InviteTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LEGACY360_ADDR", ":9999")
	t.Setenv("LEGACY360_INVITE_TTL_DAYS", "30")
	cfg := Load()
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.InviteTTL != 30*24*time.Hour {
		t.Errorf("invite ttl = %v, want 30 days", cfg.InviteTTL)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("LEGACY360_INVITE_TTL_DAYS", "zero")
	cfg := Load()
	if cfg.InviteTTL != 14*24*time.Hour {
		t.Errorf("bad ttl should fall back to 14 days, got %v", cfg.InviteTTL)
	}
}
