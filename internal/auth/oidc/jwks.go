package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// JWKSCache caches public keys from a JWKS endpoint
type JWKSCache struct {
	url        string
	httpClient *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
	cacheTTL  time.Duration
}

// NewJWKSCache creates a new JWKS cache
func NewJWKSCache(url string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		url:      url,
		keys:     make(map[string]*rsa.PublicKey),
		cacheTTL: ttl,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetKey retrieves a public key by key ID
func (j *JWKSCache) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if time.Since(j.lastFetch) > j.cacheTTL || len(j.keys) == 0 {
		if err := j.refresh(ctx); err != nil {
			return nil, err
		}
	}

	key, ok := j.keys[kid]
	if !ok {
		// Try refreshing once more in case the key was just rotated
		if err := j.refresh(ctx); err != nil {
			return nil, err
		}
		key, ok = j.keys[kid]
		if !ok {
			return nil, fmt.Errorf("key not found: %s", kid)
		}
	}

	return key, nil
}

// refresh fetches the latest JWKS from the provider. Caller holds the lock.
func (j *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", j.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []json.RawMessage `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	newKeys := make(map[string]*rsa.PublicKey)
	for _, keyData := range jwks.Keys {
		var keyInfo struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		}

		if err := json.Unmarshal(keyData, &keyInfo); err != nil {
			continue
		}

		// Only RSA keys; Pocket-ID signs with RS256
		if keyInfo.Kty != "RSA" {
			continue
		}

		nBytes, err := base64.RawURLEncoding.DecodeString(keyInfo.N)
		if err != nil {
			continue
		}

		eBytes, err := base64.RawURLEncoding.DecodeString(keyInfo.E)
		if err != nil {
			continue
		}

		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 + int(b)
		}

		newKeys[keyInfo.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: eInt,
		}
	}

	if len(newKeys) == 0 {
		return fmt.Errorf("no valid keys found in JWKS")
	}

	j.keys = newKeys
	j.lastFetch = time.Now()

	return nil
}
