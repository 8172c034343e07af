package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"guild-overlay/internal/model"
)

const (
	stateNonceBytes = 16
	stateKeyInfo    = "guild-overlay oauth state v1"
)

// StateSigner produces and checks the opaque state parameter carried through
// the OAuth redirect. States are self-contained so no server-side storage is
// needed.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner derives its MAC key from secret with HKDF so the credential
// signing key is never used directly for a second purpose.
func NewStateSigner(secret string, ttl time.Duration, now func() time.Time) (*StateSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("state secret is required")
	}
	if now == nil {
		now = time.Now
	}

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(stateKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive state key: %w", err)
	}

	return &StateSigner{key: key, ttl: ttl, now: now}, nil
}

func (s *StateSigner) Issue() (string, error) {
	payload := make([]byte, stateNonceBytes+8)
	if _, err := rand.Read(payload[:stateNonceBytes]); err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}
	binary.BigEndian.PutUint64(payload[stateNonceBytes:], uint64(s.now().Add(s.ttl).Unix()))

	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(s.sign(payload)), nil
}

// Verify returns model.ErrInvalidOAuthState for a forged, malformed or
// expired state.
func (s *StateSigner) Verify(state string) error {
	encodedPayload, encodedMAC, ok := strings.Cut(state, ".")
	if !ok {
		return model.ErrInvalidOAuthState
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil || len(payload) != stateNonceBytes+8 {
		return model.ErrInvalidOAuthState
	}
	mac, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil || !hmac.Equal(mac, s.sign(payload)) {
		return model.ErrInvalidOAuthState
	}

	expiresAt := time.Unix(int64(binary.BigEndian.Uint64(payload[stateNonceBytes:])), 0)
	if !s.now().Before(expiresAt) {
		return model.ErrInvalidOAuthState
	}
	return nil
}

func (s *StateSigner) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write(payload)
	return h.Sum(nil)
}
