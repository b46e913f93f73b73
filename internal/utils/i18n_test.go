package utils

import "testing"

func TestT(t *testing.T) {
	if got := T("el", "health.ok"); got != "εντάξει" {
		t.Errorf("el health.ok = %q", got)
	}
	if got := T("fr", "health.ok"); got != "ok" {
		t.Errorf("unknown locale should fall back to English, got %q", got)
	}
	if got := T("en", "no.such.key"); got != "no.such.key" {
		t.Errorf("unknown key should echo, got %q", got)
	}
}
