package models

import "time"

// Predefined plugin bus event types. User-defined types are allowed; these
// are the closed set the engine itself publishes.
const (
	EventDocumentUploaded   = "document_uploaded"
	EventDocumentQuery      = "document_query"
	EventIntentRecognized   = "intent_recognized"
	EventAnalysisCompleted  = "analysis_completed"
	EventWebSearch          = "web_search"
	EventImageGeneration    = "image_generation"
	EventUserQuery          = "user_query"
	EventReportGenerated    = "report_generated"
	EventUserConfirm        = "user_confirm"
	EventDiagnosisCompleted = "diagnosis_completed"
)

// EnhancedKey is the conventional data key a handler writes back so the
// publisher can consume an enhancement.
const EnhancedKey = "enhanced"

// PluginEvent is a message on the plugin bus.
type PluginEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewPluginEvent builds an event stamped with the current time.
func NewPluginEvent(eventType, source string, data map[string]any) PluginEvent {
	if data == nil {
		data = make(map[string]any)
	}
	return PluginEvent{
		EventType: eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
