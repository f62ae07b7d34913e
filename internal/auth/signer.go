// Package auth signs REST requests with a strictly increasing nonce and an HMAC-SHA256
// signature keyed by the account secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Version selects the header naming scheme.
type Version string

const (
	VersionV1  Version = "v1"
	VersionDev Version = "dev"
)

// Header prefixes per version.
const (
	prefixV1  = "SHRIMPY-"
	prefixDev = "DEV-SHRIMPY-"
)

var ErrMissingCredentials = errors.New("api key and secret are required")

// ParseVersion maps a config value onto a Version. Empty defaults to v1.
func ParseVersion(s string) (Version, error) {
	switch Version(strings.ToLower(strings.TrimSpace(s))) {
	case "", VersionV1:
		return VersionV1, nil
	case VersionDev:
		return VersionDev, nil
	default:
		return "", fmt.Errorf("unknown api version %q", s)
	}
}

// Prefix returns the header prefix for the version.
func (v Version) Prefix() string {
	if v == VersionDev {
		return prefixDev
	}
	return prefixV1
}

// Signer produces nonces and signed headers. Safe for concurrent use.
type Signer struct {
	apiKey  string
	secret  []byte
	version Version
	now     func() time.Time

	mu        sync.Mutex
	lastNonce int64
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the wall clock used for nonces.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner decodes the base64 secret and returns a ready signer.
func NewSigner(apiKey, secretKey string, version Version, opts ...Option) (*Signer, error) {
	if apiKey == "" || secretKey == "" {
		return nil, ErrMissingCredentials
	}
	secret, err := base64.StdEncoding.DecodeString(secretKey)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	s := &Signer{
		apiKey:  apiKey,
		secret:  secret,
		version: version,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Nonce returns the next nonce: the current millisecond timestamp, bumped to
// lastNonce+1 when the clock has not moved past the previous value.
func (s *Signer) Nonce() int64 {
	candidate := s.now().UnixMilli()

	s.mu.Lock()
	if candidate <= s.lastNonce {
		candidate = s.lastNonce + 1
	}
	s.lastNonce = candidate
	s.mu.Unlock()

	return candidate
}

// Sign returns the headers for a request. path must include the query string.
func (s *Signer) Sign(method, path string, body []byte) http.Header {
	nonce := strconv.FormatInt(s.Nonce(), 10)
	signature := s.signature(path, strings.ToUpper(method), nonce, body)

	prefix := s.version.Prefix()
	h := make(http.Header, 4)
	h.Set("Content-Type", "application/json")
	h.Set(prefix+"API-KEY", s.apiKey)
	h.Set(prefix+"API-NONCE", nonce)
	h.Set(prefix+"API-SIGNATURE", signature)
	return h
}

func (s *Signer) signature(path, method, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(path))
	mac.Write([]byte(method))
	mac.Write([]byte(nonce))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
