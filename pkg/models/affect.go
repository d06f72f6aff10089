package models

// Sentiment is the coarse polarity produced by Feeling.analyze.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// DialogAct is the speech-act classification produced by Feeling.analyze.
type DialogAct string

const (
	ActQuestion        DialogAct = "question"
	ActStatement       DialogAct = "statement"
	ActCommand         DialogAct = "command"
	ActExclamation     DialogAct = "exclamation"
	ActAcknowledgment  DialogAct = "acknowledgment"
)

// Urgency is the urgency classification produced by Feeling.analyze.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// AffectRecord is the output of POST /affect/analyze.
type AffectRecord struct {
	Sentiment        Sentiment `json:"sentiment"`
	Emotions         []string  `json:"emotions"`
	DialogAct        DialogAct `json:"dialog_act"`
	Urgency          Urgency   `json:"urgency"`
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
}

// AnalyzeRequest is the body of POST /affect/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// ToneRequest is the body of POST /affect/tone.
type ToneRequest struct {
	Affect           AffectRecord `json:"affect"`
	TargetAudience   string       `json:"target_audience,omitempty"`
}

// ToneResponse is the body returned by POST /affect/tone.
type ToneResponse struct {
	TonePolicies []string `json:"tone_policies"`
	PrimaryTone  string   `json:"primary_tone"`
	Confidence   float64  `json:"confidence"`
}

// CritiqueRequest is the body used by the in-gateway merger/critique call.
type CritiqueRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens"`
}

// CritiqueResponse is the result of Feeling.critique.
type CritiqueResponse struct {
	CleanedText    string   `json:"cleaned_text"`
	OriginalTokens int      `json:"original_tokens"`
	CleanedTokens  int      `json:"cleaned_tokens"`
	ChangesMade    []string `json:"changes_made"`
}

// AugmentRequest is the body of POST /augment.
type AugmentRequest struct {
	SystemPrompt      string `json:"system_prompt"`
	EmotionTemplateID string `json:"emotion_template_id"`
}

// AugmentResponse is the body returned by POST /augment.
type AugmentResponse struct {
	SystemPrompt  string `json:"system_prompt"`
	TemplateID    string `json:"template_id"`
	TemplateLabel string `json:"template_label"`
}

// EmotionTemplate is one entry of GET /templates.
type EmotionTemplate struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Suffix string `json:"suffix"`
}
