package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type csrfPayload struct {
	Exp int64  `json:"exp"`
	Typ string `json:"typ"`
	N   string `json:"n"`
}

const csrfTokenType = "csrf"

// LoadOrInitSecret reads the HMAC key at path, generating one on first use.
func LoadOrInitSecret(path string) ([]byte, error) {
	if b, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(enc+"\n"), 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func issueCSRFToken(secret []byte, ttl time.Duration, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	b, err := json.Marshal(csrfPayload{
		Exp: now.Add(ttl).Unix(),
		Typ: csrfTokenType,
		N:   base64.RawURLEncoding.EncodeToString(nonce),
	})
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	return p + "." + sign(secret, p), nil
}

func verifyCSRFToken(secret []byte, token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("missing csrf token")
	}
	p, sig, ok := strings.Cut(token, ".")
	if !ok {
		return errors.New("invalid csrf token format")
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return errors.New("invalid csrf token signature")
	}
	want, _ := base64.RawURLEncoding.DecodeString(sign(secret, p))
	if !hmac.Equal(want, got) {
		return errors.New("invalid csrf token signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return errors.New("invalid csrf token payload")
	}
	var cp csrfPayload
	if err := json.Unmarshal(raw, &cp); err != nil {
		return errors.New("invalid csrf token payload")
	}
	if cp.Typ != csrfTokenType {
		return errors.New("wrong token type")
	}
	if now.Unix() > cp.Exp {
		return errors.New("csrf token expired")
	}
	return nil
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
