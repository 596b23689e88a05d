package models

import "time"

// ErrorKind distinguishes step failure modes in step outputs.
const (
	ErrorKindException = "exception"
	ErrorKindTimeout   = "timeout"
)

// ThinkingLog is one append-only entry of the chain's audit trail.
type ThinkingLog struct {
	Step      string    `json:"step"`
	Thought   string    `json:"thought"`
	Timestamp time.Time `json:"timestamp"`
}

// StepOutput records the outcome of one executed step.
type StepOutput struct {
	Step   string `json:"step"`
	Reason string `json:"reason,omitempty"`
	Result string `json:"result,omitempty"`
	// Error is non-empty when the step failed; ErrorKind is "exception" or
	// "timeout" in that case.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// MetaState is the shared mutable state threaded through one orchestrator
// invocation. It is exclusively owned by that invocation; node returns are
// increments merged into it field-wise. All fields are always present —
// a missing value is its zero value.
type MetaState struct {
	UserInput  string         `json:"user_input"` // serialized ProcessedInput
	Analysis   map[string]any `json:"analysis"`
	Content    string         `json:"content"`
	Evaluation *Evaluation    `json:"evaluation,omitempty"`

	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	Plan        Plan `json:"plan"`
	CurrentStep int  `json:"current_step"`

	ThinkingLogs []ThinkingLog `json:"thinking_logs"`
	StepOutputs  []StepOutput  `json:"step_outputs"`

	SearchContext string `json:"search_context"`
	MemoryContext string `json:"memory_context"`
	KBContext     string `json:"kb_context"`

	EffectiveTags     []string `json:"effective_tags"`
	AnalysisPlugins   []string `json:"analysis_plugins"`
	GenerationPlugins []string `json:"generation_plugins"`

	NeedRevision    bool               `json:"need_revision"`
	StageDurations  map[string]float64 `json:"stage_durations"` // phase → seconds
	AnalyzeCacheHit bool               `json:"analyze_cache_hit"`
}

// NewMetaState builds a MetaState with all maps initialized.
func NewMetaState(input ProcessedInput, serialized string) *MetaState {
	return &MetaState{
		UserInput:      serialized,
		Analysis:       make(map[string]any),
		SessionID:      input.SessionID,
		UserID:         input.UserID,
		StageDurations: make(map[string]float64),
	}
}

// AddThinking appends a thinking log entry. Append-only by contract.
func (s *MetaState) AddThinking(step, thought string) {
	s.ThinkingLogs = append(s.ThinkingLogs, ThinkingLog{
		Step:      step,
		Thought:   thought,
		Timestamp: time.Now(),
	})
}

// AddStepOutput appends a step output record. Append-only by contract.
func (s *MetaState) AddStepOutput(out StepOutput) {
	s.StepOutputs = append(s.StepOutputs, out)
}

// RecordStageDuration accumulates one phase duration. Monotonic — an
// existing phase entry only ever grows.
func (s *MetaState) RecordStageDuration(phase string, seconds float64) {
	if s.StageDurations == nil {
		s.StageDurations = make(map[string]float64)
	}
	s.StageDurations[phase] += seconds
}

// MergeAnalysis merges plugin analysis output into the state field-wise.
// Keys already present in the state that the increment does not set are
// preserved; applying the same increment twice is idempotent.
func (s *MetaState) MergeAnalysis(increment map[string]any) {
	if len(increment) == 0 {
		return
	}
	if s.Analysis == nil {
		s.Analysis = make(map[string]any, len(increment))
	}
	for k, v := range increment {
		s.Analysis[k] = v
	}
}

// Evaluation is the parsed result of the quality evaluation step.
type Evaluation struct {
	Scores      EvaluationScores `json:"scores"`
	Overall     int              `json:"overall"` // rounded, 0–10
	Suggestions string           `json:"suggestions"`
	// Failed marks the neutral default used when the evaluation LLM call or
	// its JSON parse failed.
	Failed bool `json:"evaluation_failed,omitempty"`
}

// EvaluationScores are the per-dimension scores in [0,10].
type EvaluationScores struct {
	Consistency float64 `json:"consistency"`
	Creativity  float64 `json:"creativity"`
	Safety      float64 `json:"safety"`
	PlatformFit float64 `json:"platform_fit"`
}
