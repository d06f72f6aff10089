// Package policy implements the four-lane Policy Guardrails service:
// apply(lane, ...) builds the final system prompt from a lane template, and
// validate(lane, text) runs the lane's filter list plus schema/length checks,
// producing structured repair suggestions.
package policy

import "github.com/openrelay/gatewaysuite/pkg/models"

// filterKind names a filter rule kind, dispatched by a switch in validate.
type filterKind string

const (
	filterRegex    filterKind = "regex"
	filterMaxChars filterKind = "max_chars"
	filterMaxSentences filterKind = "max_sentences"
)

// filterRule is one entry in a lane's filter list: a uniform
// pattern+category record, dispatched by kind; severity is derived from the
// category by severityFor.
type filterRule struct {
	name     string
	kind     filterKind
	pattern  string // regex source, when kind == filterRegex
	bound    int    // max_chars / max_sentences threshold
	category string // repair-table category this issue maps to
	issue    string
}

type laneSpec struct {
	lane       models.Lane
	template   string
	schema     map[string]interface{}
	filters    []filterRule
	maxLength  int // 0 = unbounded
}

var lanes = map[models.Lane]laneSpec{
	models.LaneTechnical: {
		lane: models.LaneTechnical,
		template: "You are a precise technical assistant. Respond in the following schema: {schema}\n" +
			"Emotional tone: {emotion} (intensity {intensity}). Energy: {energy}, focus: {focus}.",
		schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"answer": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"answer"},
		},
		filters: []filterRule{
			{name: "security", kind: filterRegex, pattern: `(?i)\beval\s*\(|exec\s*\(|os\.system\s*\(|subprocess\.|rm\s+-rf`, category: "security", issue: "Security vulnerability detected"},
			{name: "syntax_placeholder", kind: filterRegex, pattern: `(?i)\bTODO\b|\bFIXME\b|\.\.\.\s*$`, category: "syntax", issue: "Incomplete or placeholder code detected"},
		},
		maxLength: 8000,
	},
	models.LaneEmotional: {
		lane: models.LaneEmotional,
		template: "You are an empathetic conversational partner. Respond in the following schema: {schema}\n" +
			"Emotional tone: {emotion} (intensity {intensity}). Energy: {energy}, focus: {focus}.",
		schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"response": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"response"},
		},
		filters: []filterRule{
			{name: "tone_harshness", kind: filterRegex, pattern: `(?i)\b(shut up|stupid question|obviously you)\b`, category: "tone", issue: "Harsh or dismissive tone detected"},
			{name: "max_sentences", kind: filterMaxSentences, bound: 6, category: "length", issue: "Response exceeds maximum sentence count"},
		},
		maxLength: 2000,
	},
	models.LaneCreative: {
		lane: models.LaneCreative,
		template: "You are a creative collaborator. Respond in the following schema: {schema}\n" +
			"Emotional tone: {emotion} (intensity {intensity}). Energy: {energy}, focus: {focus}.",
		schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"content"},
		},
		filters: []filterRule{
			{name: "appropriateness", kind: filterRegex, pattern: `(?i)\b(nsfw|explicit content|graphic violence)\b`, category: "appropriateness", issue: "Potentially inappropriate content detected"},
			{name: "originality", kind: filterRegex, pattern: `(?i)\bas an ai language model\b`, category: "originality", issue: "Generic disclaimer detracts from originality"},
		},
		maxLength: 6000,
	},
	models.LaneAnalytical: {
		lane: models.LaneAnalytical,
		template: "You are a rigorous analytical assistant. Respond in the following schema: {schema}\n" +
			"Emotional tone: {emotion} (intensity {intensity}). Energy: {energy}, focus: {focus}.",
		schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"analysis":   map[string]interface{}{"type": "string"},
				"confidence": map[string]interface{}{"type": "number"},
			},
			"required": []interface{}{"analysis"},
		},
		filters: []filterRule{
			{name: "coherence", kind: filterRegex, pattern: `(?i)\b(contradicts itself|makes no sense)\b`, category: "coherence", issue: "Internal coherence issue detected"},
			{name: "evidence", kind: filterRegex, pattern: `(?i)\b(trust me|just believe|no proof needed)\b`, category: "evidence", issue: "Claim lacks supporting evidence"},
			{name: "objectivity", kind: filterRegex, pattern: `(?i)\b(obviously the best|everyone agrees|undeniably)\b`, category: "objectivity", issue: "Unsubstantiated absolute claim detected"},
		},
		maxLength: 8000,
	},
}

// repairTable maps an issue category to its fixed repair text.
var repairTable = map[string]string{
	"security":        "Remove or sandbox the flagged operation before returning code to the user.",
	"syntax":          "Replace placeholders with complete, runnable code.",
	"length":          "Shorten the response to satisfy the lane's length bound.",
	"tone":            "Rephrase with a warmer, more respectful tone.",
	"appropriateness": "Remove the flagged content and keep the response suitable for a general audience.",
	"originality":     "Remove generic disclaimers and respond in a more original voice.",
	"coherence":       "Revise so the response is internally consistent.",
	"engagement":      "Add a more engaging opening or closing to the response.",
	"logic":           "Correct the logical inconsistency before returning the response.",
	"evidence":        "Support the claim with concrete evidence or qualify it as an opinion.",
	"objectivity":     "Qualify absolute claims and present a balanced view.",
	"schema":          "Reshape the response to match the lane's required JSON schema.",
}

func severityFor(category string) string {
	switch category {
	case "security":
		return "critical"
	case "appropriateness", "schema":
		return "high"
	default:
		return "medium"
	}
}

func laneOrDefault(lane models.Lane) (laneSpec, models.Lane) {
	if spec, ok := lanes[lane]; ok {
		return spec, lane
	}
	return lanes[models.LaneAnalytical], models.LaneAnalytical
}
