package models

import "time"

// Trait is a persisted (user_id, key) -> value+confidence attribute.
// Confidence is monotonic: an upsert never lowers the stored confidence.
type Trait struct {
	UserID     string    `json:"user_id" db:"user_id"`
	Key        string    `json:"key" db:"key"`
	Value      string    `json:"value" db:"value"`
	Confidence float64   `json:"confidence" db:"confidence"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Episode is a persisted conversational event with PII-redacted content,
// an extractive summary, and a confidence score.
type Episode struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Content    string    `json:"content" db:"content"`
	Summary    string    `json:"summary" db:"summary"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MemoryCandidate is the body of POST /mem/candidates.
type MemoryCandidate struct {
	UserID     string   `json:"user_id"`
	Text       string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// MemoryWriteResult is the response to a memory candidate write.
type MemoryWriteResult struct {
	Success        bool `json:"success"`
	TraitsExtracted int  `json:"traits_extracted"`
	EpisodeCreated bool `json:"episode_created"`
	PIIFiltered    bool `json:"pii_filtered"`
}

// MemorySnapshot is what the gateway's Pre stage folds into system_addenda:
// a short prose summary plus the episodes/traits that back it.
type MemorySnapshot struct {
	Summary  string    `json:"summary"`
	Episodes []Episode `json:"episodes,omitempty"`
	Traits   []Trait   `json:"traits,omitempty"`
}

// MemoryRetrieveResponse is the body returned by GET /mem/retrieve.
type MemoryRetrieveResponse struct {
	Traits   []Trait   `json:"traits"`
	Episodes []Episode `json:"episodes"`
}
