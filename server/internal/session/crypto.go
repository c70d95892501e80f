package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

// Envelope wraps an encrypted token set at rest. The marker field lets the
// loader tell ciphertext from a plaintext token set written before encryption
// was enabled.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	IV        string `json:"iv"`
	Data      string `json:"data"`
}

// Cipher encrypts token sets before they hit the store. The key is derived
// from the session secret, so rotating the secret invalidates stored tokens
// along with the cookies.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AES-256-GCM key from the session secret
func NewCipher(secret string) (*Cipher, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("session token encryption"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals the serialized token set into an envelope
func (c *Cipher) Encrypt(plaintext []byte) (*Envelope, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return &Envelope{
		Encrypted: true,
		IV:        hex.EncodeToString(nonce),
		Data:      hex.EncodeToString(sealed),
	}, nil
}

// Decrypt opens an envelope. Any failure (truncated fields, wrong key, tag
// mismatch) is an error; the caller destroys the session rather than trusting
// unverifiable token material.
func (c *Cipher) Decrypt(env *Envelope) ([]byte, error) {
	if !env.Encrypted {
		return nil, fmt.Errorf("envelope not marked encrypted")
	}

	nonce, err := hex.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("malformed iv: %w", err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("bad iv length: %d", len(nonce))
	}

	sealed, err := hex.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("malformed ciphertext: %w", err)
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// EncryptTokenSet is a convenience wrapper over Encrypt for the one payload
// type the store actually encrypts
func (c *Cipher) EncryptTokenSet(ts *entities.TokenSet) (*Envelope, error) {
	data, err := marshalTokenSet(ts)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(data)
}

// DecryptTokenSet opens an envelope back into a token set
func (c *Cipher) DecryptTokenSet(env *Envelope) (*entities.TokenSet, error) {
	data, err := c.Decrypt(env)
	if err != nil {
		return nil, err
	}
	return unmarshalTokenSet(data)
}

func marshalTokenSet(ts *entities.TokenSet) ([]byte, error) {
	data, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token set: %w", err)
	}
	return data, nil
}

func unmarshalTokenSet(data []byte) (*entities.TokenSet, error) {
	var ts entities.TokenSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to decode token set: %w", err)
	}
	return &ts, nil
}
