package pii_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openrelay/gatewaysuite/internal/pii"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		wantClass  pii.Class
		wantGone   string
	}{
		{"email", "reach me at jane.doe@example.com please", pii.ClassEmail, "jane.doe@example.com"},
		{"ssn", "my ssn is 123-45-6789", pii.ClassSSN, "123-45-6789"},
		{"phone", "call me at (415) 555-1234", pii.ClassPhone, "(415) 555-1234"},
		{"ip", "the server lives at 10.0.0.42 today", pii.ClassIP, "10.0.0.42"},
		{"api_key", "use sk-abcdefghijklmnopqrstuvwxyz for auth", pii.ClassAPIKey, "sk-abcdefghijklmnopqrstuvwxyz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			redacted, classes := pii.Redact(tc.text)
			assert.NotContains(t, redacted, tc.wantGone)
			assert.Contains(t, classes, tc.wantClass)
		})
	}
}

func TestRedact_NoPII(t *testing.T) {
	text := "just a plain sentence with no secrets in it"
	redacted, classes := pii.Redact(text)
	assert.Equal(t, text, redacted)
	assert.Empty(t, classes)
}

// TestRedact_Invariant asserts that once redacted, the output never
// matches any detector again.
func TestRedact_Invariant(t *testing.T) {
	samples := []string{
		"email me at person@example.org",
		"ssn: 987-65-4320, card 4111111111111111",
		"session_id: abcdEFGH12345678",
	}
	for _, s := range samples {
		redacted, _ := pii.Redact(s)
		assert.False(t, pii.ContainsPII(redacted), "redacted text still contains PII: %q", redacted)
	}
}

func TestContainsPII(t *testing.T) {
	assert.True(t, pii.ContainsPII("email me at a@b.com"))
	assert.False(t, pii.ContainsPII("nothing sensitive here"))
}
