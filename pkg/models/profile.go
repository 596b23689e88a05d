package models

import "time"

// BrandFact is one remembered fact about the user's brand.
type BrandFact struct {
	Fact     string `json:"fact"`
	Category string `json:"category,omitempty"`
}

// SuccessCase is one recorded past success the assistant may reference.
type SuccessCase struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
}

// UserProfile is the read-mostly view of the user_profiles table.
type UserProfile struct {
	UserID         string        `json:"user_id"`
	BrandName      string        `json:"brand_name,omitempty"`
	Industry       string        `json:"industry,omitempty"`
	PreferredStyle string        `json:"preferred_style,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	BrandFacts     []BrandFact   `json:"brand_facts,omitempty"`
	SuccessCases   []SuccessCase `json:"success_cases,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// InteractionRecord is one row of the append-only interaction_histories
// table: one assistant turn. Rating and comment are mutated only through the
// feedback path.
type InteractionRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	UserInput   string    `json:"user_input"` // serialized ProcessedInput
	AIOutput    string    `json:"ai_output"`
	CreatedAt   time.Time `json:"created_at"`
	UserRating  *int      `json:"user_rating,omitempty"`
	UserComment *string   `json:"user_comment,omitempty"`
}

// SessionRecord is the KV-store session entry. Created at session start,
// TTL-expired thereafter.
type SessionRecord struct {
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	ThreadID    string         `json:"thread_id"`
	CreatedAt   time.Time      `json:"created_at"`
	InitialData map[string]any `json:"initial_data,omitempty"`
}

// SessionDocument is one parsed document bound to a session.
type SessionDocument struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	OriginalFilename string    `json:"original_filename"`
	ParsedText       string    `json:"parsed_text"`
	CreatedAt        time.Time `json:"created_at"`
}
