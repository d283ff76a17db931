package storage

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a := generateID()
	b := generateID()
	if a == b {
		t.Errorf("generateID() produced duplicate IDs: %s", a)
	}
	if len(a) != 36 {
		t.Errorf("generateID() = %q, want 36-char UUID", a)
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key := generateAPIKey()
	if !strings.HasPrefix(key, "dw_key_") {
		t.Errorf("generateAPIKey() = %q, want dw_key_ prefix", key)
	}
	// 24 random bytes hex-encoded after the prefix
	if got := len(key) - len("dw_key_"); got != 48 {
		t.Errorf("generateAPIKey() random part length = %d, want 48", got)
	}
	if key == generateAPIKey() {
		t.Error("generateAPIKey() produced duplicate keys")
	}
}

func TestHashAPIKey(t *testing.T) {
	h := hashAPIKey("dw_key_test")
	if len(h) != 64 {
		t.Errorf("hashAPIKey() length = %d, want 64", len(h))
	}
	if h != hashAPIKey("dw_key_test") {
		t.Error("hashAPIKey() is not deterministic")
	}
	if h == hashAPIKey("dw_key_other") {
		t.Error("hashAPIKey() collided for different keys")
	}
}
