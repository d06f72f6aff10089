// Package intent classifies user text into one of six families using a
// flat, ordered table of regex rules. Precedence is fixed and evaluated
// top-to-bottom: PSYCHOTHERAPY > REGULATED > LEGAL > TECH >
// GENERAL_PRECISION, falling through to OPEN_ENDED.
package intent

import (
	"regexp"
	"time"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

type rule struct {
	family   models.Family
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// rules is evaluated in order; the first family whose pattern set matches
// the input text wins. Keyword sets are disjoint across families.
var rules = []rule{
	{
		family: models.FamilyPsychotherapy,
		patterns: compile(
			`\b(anxious|anxiety|depress(ed|ion)|therapy|therapist|panic attack|suicidal|self[- ]harm|grief|trauma)\b`,
		),
	},
	{
		family: models.FamilyRegulated,
		patterns: compile(
			`\b(medical diagnosis|prescri(be|ption)|dosage|controlled substance|firearm purchase|explosive|weapon(ize|ized)?)\b`,
		),
	},
	{
		family: models.FamilyLegal,
		patterns: compile(
			`\b(lawsuit|contract clause|legal advice|liability|attorney|plaintiff|defendant|jurisdiction)\b`,
		),
	},
	{
		family: models.FamilyTech,
		patterns: compile(
			"```",
			`\b(def |class |import |#include|async def|public static)\b`,
			`\b(error|exception|stack trace|debug|compile|refactor|algorithm)\b`,
			`\b(python|javascript|typescript|golang|rust|c\+\+)\b`,
		),
	},
	{
		family: models.FamilyGeneralPrecision,
		patterns: compile(
			`\b(exact(ly)?|precise(ly)?|calculate|how many|what is the (value|number)|convert \d)\b`,
		),
	},
}

var emotionTemplateByFamily = map[models.Family]string{
	models.FamilyTech:             "none",
	models.FamilyLegal:            "none",
	models.FamilyRegulated:        "none",
	models.FamilyPsychotherapy:    "empathy_therapist",
	models.FamilyGeneralPrecision: "self_monitor",
	models.FamilyOpenEnded:        "stakes",
}

var noEmotionFamilies = map[models.Family]bool{
	models.FamilyTech:      true,
	models.FamilyLegal:     true,
	models.FamilyRegulated: true,
}

// remoteEscalation mirrors the gateway's own Pre-stage heuristic so
// /classify and the in-gateway heuristic agree.
var (
	codeFence        = regexp.MustCompile("```")
	languageKeywords = regexp.MustCompile(`(?i)\b(def|class|import|#include|async def|public static)\b`)
	techKeywords     = regexp.MustCompile(`(?i)\b(optimize|refactor|algorithm|complexity|asyncio|deadlock|thread|socket|performance|vectorize)\b`)
	upscaleSignal    = regexp.MustCompile(`(?i)\b(gpt-4|larger model|highest quality|best model)\b`)
)

const remoteEscalationLengthThreshold = 350

// NeedsRemote applies the remote-escalation heuristic.
func NeedsRemote(text string) bool {
	if codeFence.MatchString(text) || languageKeywords.MatchString(text) || techKeywords.MatchString(text) || upscaleSignal.MatchString(text) {
		return true
	}
	return len(text) >= remoteEscalationLengthThreshold
}

// Classify runs the family precedence table against text.
func Classify(text string) models.ClassifyResponse {
	start := time.Now()
	family := models.FamilyOpenEnded
	reasoning := "no rule matched; defaulted to OPEN_ENDED"
	for _, r := range rules {
		if matchesAny(r.patterns, text) {
			family = r.family
			reasoning = "matched " + string(r.family) + " keyword set"
			break
		}
	}
	return models.ClassifyResponse{
		Intent:           family,
		Confidence:       confidenceFor(family, reasoning),
		NeedsRemote:      NeedsRemote(text),
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Reasoning:        reasoning,
	}
}

func confidenceFor(family models.Family, reasoning string) float64 {
	if family == models.FamilyOpenEnded {
		return 0.4
	}
	return 0.85
}

// Route builds the richer /route response, including the provider mapping
// and tag set (with the mandatory "no_emotion" tag for TECH/LEGAL/REGULATED).
func Route(req models.RouteRequest) models.RouteResponse {
	c := Classify(req.UserText)
	family := c.Intent

	provider := models.ProviderLocal
	switch family {
	case models.FamilyRegulated:
		// REGULATED stays local unless the caller opted in to remote.
		if req.RegulatedRemoteOptIn {
			provider = models.ProviderRemote
		}
	case models.FamilyTech, models.FamilyLegal, models.FamilyPsychotherapy:
		provider = models.ProviderRemote
	case models.FamilyGeneralPrecision, models.FamilyOpenEnded:
		provider = models.ProviderLocal
	}

	tags := append([]string{}, req.Tags...)
	if noEmotionFamilies[family] && !req.NoEmotionOptOut {
		tags = append(tags, "no_emotion")
	}
	if family == models.FamilyPsychotherapy {
		tags = append(tags, "psychotherapy")
	}

	return models.RouteResponse{
		Family:                  family,
		EmotionTemplateID:       emotionTemplateByFamily[family],
		Provider:                provider,
		OpenRouterModelPriority: modelPriorityFor(family),
		Tags:                    tags,
	}
}

func modelPriorityFor(family models.Family) []string {
	switch family {
	case models.FamilyTech:
		return []string{"coder-model", "toolcall-model"}
	case models.FamilyPsychotherapy:
		return []string{"empathy-model", "toolcall-model"}
	default:
		return []string{"toolcall-model"}
	}
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
