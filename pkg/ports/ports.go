// Package ports defines the narrow capability boundaries the engine calls
// out through: web search, knowledge retrieval, platform hotspots, and the
// optional analytics ports. Each port has at least a mock adapter and one
// real adapter; the engine never imports a concrete backend directly.
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookup operations when no record exists.
var ErrNotFound = errors.New("record not found")

// SearchResult is one ranked web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Search retrieves external web facts.
type Search interface {
	Search(ctx context.Context, query string, numResults int, searchType string) ([]SearchResult, error)
}

// Knowledge retrieves passages from the knowledge base.
type Knowledge interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// HotspotItem is one trending entry on a platform.
type HotspotItem struct {
	Title    string `json:"title"`
	Heat     int64  `json:"heat"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Hotspot fetches trending items for a platform. Consumed by the scheduled
// hotspot plugins; never called on the request path.
type Hotspot interface {
	Fetch(ctx context.Context, platform string, limit int) ([]HotspotItem, error)
}

// ImageAnalysisResult describes one analyzed image.
type ImageAnalysisResult struct {
	Description string   `json:"description"`
	Objects     []string `json:"objects,omitempty"`
	Scene       string   `json:"scene,omitempty"`
	Text        string   `json:"text,omitempty"`
	Style       string   `json:"style,omitempty"`
}

// VideoAnalysisResult describes one analyzed video.
type VideoAnalysisResult struct {
	Summary    string                `json:"summary"`
	KeyFrames  []ImageAnalysisResult `json:"key_frames,omitempty"`
	Transcript string                `json:"transcript,omitempty"`
	Duration   float64               `json:"duration_seconds,omitempty"`
	Topics     []string              `json:"topics,omitempty"`
}

// Multimodal analyzes images and videos.
type Multimodal interface {
	AnalyzeImage(ctx context.Context, urlOrData string, options map[string]string) (*ImageAnalysisResult, error)
	AnalyzeVideo(ctx context.Context, url string, options map[string]string) (*VideoAnalysisResult, error)
}

// ViralPrediction scores a content feature set for viral potential.
type ViralPrediction struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Factors    []string `json:"factors,omitempty"`
}

// CTRPrediction estimates click-through for a cover/title pair.
type CTRPrediction struct {
	CTR        float64  `json:"ctr"`
	Confidence float64  `json:"confidence"`
	Factors    []string `json:"factors,omitempty"`
}

// Prediction provides viral-score and CTR estimates.
type Prediction interface {
	PredictViral(ctx context.Context, features map[string]any, platform string) (*ViralPrediction, error)
	PredictCTR(ctx context.Context, coverFeatures map[string]any, title, platform string) (*CTRPrediction, error)
}

// VideoContentStructure is the decomposed skeleton of a video.
type VideoContentStructure struct {
	Hook      string   `json:"hook"`
	Sections  []string `json:"sections"`
	CTA       string   `json:"cta,omitempty"`
	Style     string   `json:"style,omitempty"`
	Platform  string   `json:"platform,omitempty"`
	Rhythm    string   `json:"rhythm,omitempty"`
	Highlight string   `json:"highlight,omitempty"`
}

// DecomposeRequest carries the optional inputs for video decomposition. At
// least one of VideoURL/RawText/Multimodal must be set.
type DecomposeRequest struct {
	VideoURL   string
	RawText    string
	Multimodal *VideoAnalysisResult
	Platform   string
}

// VideoDecomposition breaks a video or script into a reusable structure.
type VideoDecomposition interface {
	Decompose(ctx context.Context, req DecomposeRequest) (*VideoContentStructure, error)
}

// Sample is one reference item in the sample library.
type Sample struct {
	VideoID  string         `json:"video_id"`
	Platform string         `json:"platform"`
	Category string         `json:"category,omitempty"`
	Title    string         `json:"title"`
	Metrics  map[string]any `json:"metrics,omitempty"`
}

// SampleLibrary stores and retrieves reference samples.
type SampleLibrary interface {
	Ingest(ctx context.Context, samples []Sample, batchSize int) (int, error)
	Search(ctx context.Context, platform, category string, topK int, filters map[string]string) ([]Sample, error)
	GetByID(ctx context.Context, videoID, platform string) (*Sample, error)
}

// RuleSet is a platform's content compliance ruleset.
type RuleSet struct {
	Platform         string             `json:"platform"`
	SensitiveWords   []string           `json:"sensitive_words"`
	ProhibitedVisual []string           `json:"prohibited_visuals"`
	Thresholds       map[string]float64 `json:"thresholds"`
}

// PlatformRules exposes per-platform compliance rules.
type PlatformRules interface {
	GetRules(ctx context.Context, platform string) (*RuleSet, error)
	SensitiveWords(ctx context.Context, platform string) ([]string, error)
	ProhibitedVisuals(ctx context.Context, platform string) ([]string, error)
	Thresholds(ctx context.Context, platform string) (map[string]float64, error)
	Reload(ctx context.Context) error
}

// MethodologyDoc is one methodology document.
type MethodologyDoc struct {
	Path     string    `json:"path"`
	Category string    `json:"category,omitempty"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Updated  time.Time `json:"updated_at"`
}

// Methodology is the methodology document store.
type Methodology interface {
	ListDocs(ctx context.Context, category string) ([]MethodologyDoc, error)
	GetDoc(ctx context.Context, path string) (*MethodologyDoc, error)
	CreateDoc(ctx context.Context, doc MethodologyDoc) error
	UpdateDoc(ctx context.Context, doc MethodologyDoc) error
	DeleteDoc(ctx context.Context, path string) error
}

// CaseTemplateRecord is one reusable case template.
type CaseTemplateRecord struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Platform string    `json:"platform,omitempty"`
	Body     string    `json:"body"`
	Created  time.Time `json:"created_at"`
}

// CaseScore rates one case template.
type CaseScore struct {
	CaseID  string    `json:"case_id"`
	Score   float64   `json:"score"`
	Comment string    `json:"comment,omitempty"`
	Created time.Time `json:"created_at"`
}

// CaseTemplate manages case templates and their scores.
type CaseTemplate interface {
	Create(ctx context.Context, rec CaseTemplateRecord) (string, error)
	GetByID(ctx context.Context, id string) (*CaseTemplateRecord, error)
	List(ctx context.Context, platform string, limit int) ([]CaseTemplateRecord, error)
	Update(ctx context.Context, rec CaseTemplateRecord) error
	Delete(ctx context.Context, id string) error
	AddScore(ctx context.Context, score CaseScore) error
	GetScores(ctx context.Context, caseID string) ([]CaseScore, error)
}

// Feedback is one user feedback record.
type Feedback struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Created   time.Time `json:"created_at"`
}

// PlatformMetric is one observed platform performance data point.
type PlatformMetric struct {
	Platform string    `json:"platform"`
	VideoID  string    `json:"video_id,omitempty"`
	Name     string    `json:"name"`
	Value    float64   `json:"value"`
	Observed time.Time `json:"observed_at"`
}

// DataLoop records outcomes back into the system for later tuning.
type DataLoop interface {
	RecordFeedback(ctx context.Context, fb Feedback) error
	GetFeedbacks(ctx context.Context, userID, sessionID string, limit int) ([]Feedback, error)
	RecordPlatformMetric(ctx context.Context, m PlatformMetric) error
	GetPlatformMetrics(ctx context.Context, platform, name string, limit int) ([]PlatformMetric, error)
	GetVideoPerformance(ctx context.Context, videoID string) ([]PlatformMetric, error)
}
