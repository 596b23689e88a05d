// Package models defines the shared contracts threaded through the
// deep-thinking engine: normalized input, plans, execution state, plugin
// events, and the read-mostly views of the persisted stores.
package models

// Intent classifies a user utterance.
type Intent string

const (
	IntentStructuredRequest Intent = "structured_request"
	IntentFreeDiscussion    Intent = "free_discussion"
	IntentCasualChat        Intent = "casual_chat"
	IntentDocumentQuery     Intent = "document_query"
	IntentCommand           Intent = "command"
)

// StructuredData holds fields extracted from the utterance.
type StructuredData struct {
	BrandName   string `json:"brand_name,omitempty"`
	ProductDesc string `json:"product_desc,omitempty"`
	Topic       string `json:"topic,omitempty"`
	// SelfIntro carries a detected self-introduction (我叫X / 我是做X的)
	// destined for long-term memory, even on casual turns.
	SelfIntro string `json:"self_intro,omitempty"`
}

// ProcessedInput is the normalized output of the Intent Processor.
// Invariant: Intent == IntentCommand implies Command is non-empty.
type ProcessedInput struct {
	Intent                 Intent         `json:"intent"`
	RawQuery               string         `json:"raw_query"`
	Command                string         `json:"command,omitempty"`
	StructuredData         StructuredData `json:"structured_data"`
	ExplicitContentRequest bool           `json:"explicit_content_request"`
	SessionID              string         `json:"session_id"`
	UserID                 string         `json:"user_id"`
}
