package security

import (
	"bytes"
	"errors"
	"testing"
)

func TestSecretBox_SealOpen(t *testing.T) {
	box := NewSecretBox("server-key")
	sealed, err := box.Seal("session-abc", []byte("passme"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("passme")) {
		t.Fatal("sealed output contains plaintext")
	}
	got, err := box.Open("session-abc", sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != "passme" {
		t.Errorf("Open = %q, want %q", got, "passme")
	}
}

func TestSecretBox_WrongPresentedValue(t *testing.T) {
	box := NewSecretBox("server-key")
	sealed, _ := box.Seal("session-abc", []byte("passme"))
	if _, err := box.Open("session-xyz", sealed); !errors.Is(err, ErrSecretMismatch) {
		t.Errorf("Open with wrong value: err = %v, want ErrSecretMismatch", err)
	}
}

func TestSecretBox_WrongServerKey(t *testing.T) {
	sealed, _ := NewSecretBox("k1").Seal("session-abc", []byte("passme"))
	if _, err := NewSecretBox("k2").Open("session-abc", sealed); !errors.Is(err, ErrSecretMismatch) {
		t.Errorf("Open with other server key: err = %v, want ErrSecretMismatch", err)
	}
}

func TestSecretBox_Truncated(t *testing.T) {
	box := NewSecretBox("")
	if _, err := box.Open("v", []byte{1, 2, 3}); !errors.Is(err, ErrSecretMismatch) {
		t.Errorf("Open truncated: err = %v, want ErrSecretMismatch", err)
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(72)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if len(a) != 72 {
		t.Errorf("len = %d, want 72", len(a))
	}
	for _, r := range a {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Fatalf("unexpected rune %q in token", r)
		}
	}
	b, _ := GenerateToken(72)
	if a == b {
		t.Error("two generated tokens should differ")
	}
	if _, err := GenerateToken(0); err == nil {
		t.Error("GenerateToken(0) should fail")
	}
}
