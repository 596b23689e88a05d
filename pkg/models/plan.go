package models

// Built-in step names understood by the orchestrator. Any other step name is
// resolved against the workflow registry at execution time.
const (
	StepWebSearch   = "web_search"
	StepMemoryQuery = "memory_query"
	StepAnalyze     = "analyze"
	StepGenerate    = "generate"
	StepEvaluate    = "evaluate"

	StepBilibiliHotspot = "bilibili_hotspot"
	StepWeiboHotspot    = "weibo_hotspot"
	StepDouyinHotspot   = "douyin_hotspot"
)

// TaskType classifies a plan and drives plugin-list derivation.
type TaskType string

const (
	TaskCampaignOrCopy TaskType = "campaign_or_copy"
	TaskGeneral        TaskType = "general"
)

// PlanStep is one executable unit of a plan.
type PlanStep struct {
	Step   string            `json:"step"`
	Params map[string]string `json:"params,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

// Plan is the ordered step list produced by the Strategy Planner.
// Invariants: 2–6 steps; no "generate" step unless the request explicitly
// asked for content.
type Plan struct {
	Steps    []PlanStep `json:"steps"`
	TaskType TaskType   `json:"task_type"`
}

// Contains reports whether the plan includes the named step.
func (p Plan) Contains(step string) bool {
	for _, s := range p.Steps {
		if s.Step == step {
			return true
		}
	}
	return false
}

// IsHotspotStep reports whether the step name is one of the platform
// hotspot briefing steps.
func IsHotspotStep(step string) bool {
	switch step {
	case StepBilibiliHotspot, StepWeiboHotspot, StepDouyinHotspot:
		return true
	}
	return false
}

// IsParallelSafe reports whether a step may run in the orchestrator's
// parallel fan-out phase. Parallel-safe steps only read external capabilities
// and write disjoint MetaState fields.
func IsParallelSafe(step string) bool {
	return step == StepWebSearch || step == StepMemoryQuery || IsHotspotStep(step)
}

// HotspotPlatform maps a hotspot step name to its platform label.
func HotspotPlatform(step string) string {
	switch step {
	case StepBilibiliHotspot:
		return "B站"
	case StepWeiboHotspot:
		return "微博"
	case StepDouyinHotspot:
		return "抖音"
	}
	return ""
}
