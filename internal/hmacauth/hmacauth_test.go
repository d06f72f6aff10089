package hmacauth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/hmacauth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := hmacauth.New("secret")
	body := []byte(`{"a":1}`)
	sig := s.Sign(body)
	assert.True(t, s.Verify(body, sig))
}

func TestVerify_WrongSignatureRejected(t *testing.T) {
	s := hmacauth.New("secret")
	assert.False(t, s.Verify([]byte(`{"a":1}`), "deadbeef"))
}

func TestVerify_DifferentSecretsProduceDifferentSignatures(t *testing.T) {
	a := hmacauth.New("secret-a")
	b := hmacauth.New("secret-b")
	body := []byte(`{"a":1}`)
	assert.NotEqual(t, a.Sign(body), b.Sign(body))
}

func TestNew_EmptySecretDisablesAuth(t *testing.T) {
	s := hmacauth.New("")
	assert.False(t, s.Enabled())
	assert.True(t, s.Verify([]byte("anything"), "wrong-sig"))
}

func TestNew_NonEmptySecretEnablesAuth(t *testing.T) {
	s := hmacauth.New("secret")
	assert.True(t, s.Enabled())
}

func TestSignRequest_NoopWhenDisabled(t *testing.T) {
	s := hmacauth.New("")
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	s.SignRequest(req, []byte("body"))
	assert.Empty(t, req.Header.Get(hmacauth.SignatureHeader))
}

func TestSignRequest_SetsHeaderWhenEnabled(t *testing.T) {
	s := hmacauth.New("secret")
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	s.SignRequest(req, []byte("body"))
	assert.Equal(t, s.Sign([]byte("body")), req.Header.Get(hmacauth.SignatureHeader))
}

func TestMiddleware_DisabledPassesThroughEverything(t *testing.T) {
	s := hmacauth.New("")
	h := s.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_EnabledAllowsGETRegardlessOfSignature(t *testing.T) {
	s := hmacauth.New("secret")
	h := s.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/some-resource", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_EnabledAllowsHealthAndMetricsEvenOnPOST(t *testing.T) {
	s := hmacauth.New("secret")
	h := s.Middleware(okHandler())

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s should be allowlisted", path)
	}
}

func TestMiddleware_RejectsMissingSignature(t *testing.T) {
	s := hmacauth.New("secret")
	h := s.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_RejectsInvalidSignature(t *testing.T) {
	s := hmacauth.New("secret")
	h := s.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set(hmacauth.SignatureHeader, "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_AcceptsValidSignature(t *testing.T) {
	s := hmacauth.New("secret")
	h := s.Middleware(okHandler())

	body := `{"hello":"world"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set(hmacauth.SignatureHeader, s.Sign([]byte(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_BodyRemainsReadableByHandler(t *testing.T) {
	s := hmacauth.New("secret")
	var seenBody string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 32)
		n, _ := r.Body.Read(b)
		seenBody = string(b[:n])
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"k":"v"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set(hmacauth.SignatureHeader, s.Sign([]byte(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seenBody)
}
