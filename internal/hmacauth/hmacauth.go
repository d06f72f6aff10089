// Package hmacauth signs and verifies inter-service requests with
// HMAC-SHA256 over the canonical JSON request body. Verification is gated
// on a configured shared secret, compares in constant time, and allowlists
// the public read-only paths.
package hmacauth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
)

const SignatureHeader = "X-SUITE-SIG"

// Signer signs and verifies with a shared secret. A zero-value secret
// disables auth entirely; used for local development and tests.
type Signer struct {
	secret  []byte
	enabled bool
}

func New(secret string) *Signer {
	return &Signer{secret: []byte(secret), enabled: secret != ""}
}

func (s *Signer) Enabled() bool { return s.enabled }

// Sign returns the hex HMAC-SHA256 of body under the configured secret.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest attaches the X-SUITE-SIG header to an outbound request whose
// body is body. No-op when signing is disabled.
func (s *Signer) SignRequest(req *http.Request, body []byte) {
	if !s.enabled {
		return
	}
	req.Header.Set(SignatureHeader, s.Sign(body))
}

// Verify reports whether sig is the correct signature for body, using a
// constant-time comparison so timing does not leak partial matches.
func (s *Signer) Verify(body []byte, sig string) bool {
	if !s.enabled {
		return true
	}
	want := s.Sign(body)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}

// isPublicPath allowlists GETs and health/metrics endpoints: only JSON
// POSTs between services are signed, so GETs (and these paths specifically)
// never need a signature even when auth is enabled.
func isPublicPath(r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	switch r.URL.Path {
	case "/health", "/metrics":
		return true
	}
	return false
}

// Middleware verifies X-SUITE-SIG on inbound signed POSTs, rejecting with
// 401 on a missing or mismatched signature. GETs and the allowlisted paths
// pass through unchecked regardless of method.
func (s *Signer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.enabled || isPublicPath(r) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondUnauthorized(w, "unreadable body")
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		sig := r.Header.Get(SignatureHeader)
		if sig == "" || !s.Verify(body, sig) {
			respondUnauthorized(w, "invalid or missing signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
