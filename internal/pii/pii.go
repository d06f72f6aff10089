// Package pii provides the shared PII-detection/redaction table used by the
// Memory and Telemetry services: a flat, ordered table of regex detectors
// dispatched by class name.
package pii

import "regexp"

// Class names one of the eight PII categories subject to redaction.
type Class string

const (
	ClassEmail     Class = "EMAIL"
	ClassPhone     Class = "PHONE"
	ClassSSN       Class = "SSN"
	ClassCreditCard Class = "CREDIT_CARD"
	ClassIP        Class = "IP"
	ClassSessionID Class = "SESSION_ID"
	ClassUserID    Class = "USER_ID"
	ClassAPIKey    Class = "API_KEY"
)

type detector struct {
	class   Class
	pattern *regexp.Regexp
}

// order matters only for readability; detection classes are disjoint enough
// that match order does not affect the result.
var detectors = []detector{
	{ClassEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{ClassSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{ClassCreditCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{ClassPhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{ClassIP, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{ClassSessionID, regexp.MustCompile(`\bsess(?:ion)?[_-]?id["':=\s]+[A-Za-z0-9._-]{8,}\b`)},
	{ClassUserID, regexp.MustCompile(`\buser[_-]?id["':=\s]+[A-Za-z0-9._-]{4,}\b`)},
	{ClassAPIKey, regexp.MustCompile(`\b(?:sk|pk|api)[-_][A-Za-z0-9]{16,}\b`)},
}

// Redact returns a deep copy of text with every detected PII class replaced
// by "[REDACTED_<CLASS>]", plus the classes that matched, in detector-table
// order.
func Redact(text string) (redacted string, classes []Class) {
	redacted = text
	seen := make(map[Class]bool)
	for _, d := range detectors {
		if d.pattern.MatchString(redacted) {
			redacted = d.pattern.ReplaceAllString(redacted, "[REDACTED_"+string(d.class)+"]")
			seen[d.class] = true
		}
	}
	for _, d := range detectors {
		if seen[d.class] {
			classes = append(classes, d.class)
		}
	}
	return redacted, classes
}

// ContainsPII reports whether any registered class matches text, without
// redacting it.
func ContainsPII(text string) bool {
	for _, d := range detectors {
		if d.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
