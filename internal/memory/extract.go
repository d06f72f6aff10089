package memory

import (
	"regexp"
	"strings"
)

// traitPattern is one entry in the extraction table: the same flat,
// ordered-rule idiom used throughout this repo (intent, policy).
type traitPattern struct {
	re         *regexp.Regexp
	key        string
	confidence float64
}

var traitPatterns = []traitPattern{
	{regexp.MustCompile(`(?i)(?:I am|I'm)\s+(\w+)`), "personality", 0.7},
	{regexp.MustCompile(`(?i)I (?:like|love|enjoy)\s+([^.!?]+)`), "preference", 0.6},
	{regexp.MustCompile(`(?i)I (?:work|am employed)\s+(?:as|at)\s+([^.!?]+)`), "occupation", 0.8},
	{regexp.MustCompile(`(?i)I live in\s+([^.!?]+)`), "location", 0.8},
	{regexp.MustCompile(`(?i)My (?:name is|name's)\s+(\w+)`), "name", 0.9},
	{regexp.MustCompile(`(?i)I (?:hate|dislike|don't like)\s+([^.!?]+)`), "dislike", 0.6},
}

type extractedTrait struct {
	key        string
	value      string
	confidence float64
}

func extractTraits(content string) []extractedTrait {
	var out []extractedTrait
	for _, p := range traitPatterns {
		for _, m := range p.re.FindAllStringSubmatch(content, -1) {
			if len(m) < 2 {
				continue
			}
			value := strings.TrimSpace(m[1])
			if value == "" {
				continue
			}
			out = append(out, extractedTrait{key: p.key, value: value, confidence: p.confidence})
		}
	}
	return out
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// summarize picks whole sentences (longer than 10 chars) up to an
// approximate maxTokens budget, estimating tokens as chars/4 so downstream
// token-accounting expectations agree.
func summarize(content string, maxTokens int) string {
	var kept []string
	budget := 0
	for _, raw := range sentenceBoundary.Split(content, -1) {
		s := strings.TrimSpace(raw)
		if len(s) <= 10 {
			continue
		}
		estTokens := len(s) / 4
		if budget+estTokens > maxTokens {
			break
		}
		kept = append(kept, s)
		budget += estTokens
	}
	if len(kept) == 0 {
		cut := maxTokens * 4
		if cut > len(content) {
			cut = len(content)
		}
		return content[:cut]
	}
	summary := strings.Join(kept, ". ")
	if !strings.HasSuffix(summary, ".") {
		summary += "."
	}
	return summary
}
