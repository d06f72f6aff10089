package models

// Family is one of six content classifications the Intent Router assigns.
type Family string

const (
	FamilyTech             Family = "TECH"
	FamilyLegal            Family = "LEGAL"
	FamilyRegulated        Family = "REGULATED"
	FamilyPsychotherapy    Family = "PSYCHOTHERAPY"
	FamilyGeneralPrecision Family = "GENERAL_PRECISION"
	FamilyOpenEnded        Family = "OPEN_ENDED"
)

// ProviderPreference is the Intent Router's recommended provider for a family.
type ProviderPreference string

const (
	ProviderLocal  ProviderPreference = "local"
	ProviderRemote ProviderPreference = "remote"
)

// IntentRecord is the immutable classification result produced once per request.
type IntentRecord struct {
	Family                 Family             `json:"family"`
	Confidence             float64            `json:"confidence"`
	NeedsRemote            bool               `json:"needs_remote"`
	EmotionTemplateID      string             `json:"emotion_template_id"`
	ProviderPreference     ProviderPreference `json:"provider_preference"`
	SuggestedModelPriority []string           `json:"suggested_model_priority,omitempty"`
	Tags                   []string           `json:"tags,omitempty"`
	ProcessingTimeMs       float64            `json:"processing_time_ms"`
	Reasoning              string             `json:"reasoning,omitempty"`
}

// DefaultIntent is used when the Intent Router call fails; the Pre stage
// degrades to this rather than aborting the request.
func DefaultIntent() IntentRecord {
	return IntentRecord{
		Family:              FamilyOpenEnded,
		NeedsRemote:         false,
		EmotionTemplateID:   "stakes",
		ProviderPreference:  ProviderLocal,
	}
}

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Text         string   `json:"text"`
	LastIntent   string   `json:"last_intent,omitempty"`
	Attachments  []string `json:"attachments,omitempty"`
}

// ClassifyResponse is the body returned by POST /classify.
type ClassifyResponse struct {
	Intent           Family  `json:"intent"`
	Confidence       float64 `json:"confidence"`
	NeedsRemote      bool    `json:"needs_remote"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// RouteRequest is the body of POST /route. RegulatedRemoteOptIn lets a
// caller send REGULATED traffic to the remote provider; absent it, the
// service-level REMOTE_CODE_REGULATED_OPT_IN default applies.
type RouteRequest struct {
	UserText             string   `json:"user_text"`
	Tags                 []string `json:"tags,omitempty"`
	NoEmotionOptOut      bool     `json:"no_emotion_opt_out,omitempty"`
	RegulatedRemoteOptIn bool     `json:"regulated_remote_opt_in,omitempty"`
}

// RouteResponse is the body returned by POST /route.
type RouteResponse struct {
	Family                Family             `json:"family"`
	EmotionTemplateID     string             `json:"emotion_template_id"`
	Provider              ProviderPreference `json:"provider"`
	OpenRouterModelPriority []string         `json:"openrouter_model_priority"`
	Tags                  []string           `json:"tags"`
}
