package session

import (
	"strings"
	"testing"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testSecret)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	tests := []struct {
		name string
		ts   entities.TokenSet
	}{
		{
			name: "typical tokens",
			ts: entities.TokenSet{
				AccessToken:  "access-token-value",
				IDToken:      "id-token-value",
				RefreshToken: "refresh-token-value",
			},
		},
		{
			name: "no refresh token",
			ts: entities.TokenSet{
				AccessToken: "access-only",
				IDToken:     "id-only",
			},
		},
		{
			name: "empty token set",
			ts:   entities.TokenSet{},
		},
		{
			name: "unicode and long values",
			ts: entities.TokenSet{
				AccessToken: strings.Repeat("長いトークン値", 500),
				IDToken:     "ключ-значение",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := c.EncryptTokenSet(&tt.ts)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if !env.Encrypted {
				t.Error("envelope not marked encrypted")
			}
			if env.IV == "" || env.Data == "" {
				t.Error("envelope missing iv or data")
			}

			got, err := c.DecryptTokenSet(env)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if *got != tt.ts {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.ts)
			}
		})
	}
}

func TestCipherNonceUniqueness(t *testing.T) {
	c, err := NewCipher(testSecret)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	ts := &entities.TokenSet{AccessToken: "same-plaintext"}
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		env, err := c.EncryptTokenSet(ts)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if seen[env.IV] {
			t.Fatalf("nonce reused: %s", env.IV)
		}
		seen[env.IV] = true
	}
}

func TestCipherWrongKeyFails(t *testing.T) {
	c1, err := NewCipher(testSecret)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	c2, err := NewCipher("a-completely-different-secret-here!!")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	env, err := c1.EncryptTokenSet(&entities.TokenSet{AccessToken: "secret"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := c2.DecryptTokenSet(env); err == nil {
		t.Error("decryption with wrong key should fail")
	}
}

func TestCipherRejectsTamperedEnvelope(t *testing.T) {
	c, err := NewCipher(testSecret)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	env, err := c.EncryptTokenSet(&entities.TokenSet{AccessToken: "secret"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{"flipped ciphertext byte", func(e *Envelope) {
			b := []byte(e.Data)
			if b[0] == 'a' {
				b[0] = 'b'
			} else {
				b[0] = 'a'
			}
			e.Data = string(b)
		}},
		{"truncated iv", func(e *Envelope) { e.IV = e.IV[:4] }},
		{"non-hex data", func(e *Envelope) { e.Data = "zzzz" }},
		{"unencrypted marker", func(e *Envelope) { e.Encrypted = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := *env
			tt.mutate(&mutated)
			if _, err := c.DecryptTokenSet(&mutated); err == nil {
				t.Error("expected decryption failure")
			}
		})
	}
}
