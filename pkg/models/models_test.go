package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAnalysis(t *testing.T) {
	s := NewMetaState(ProcessedInput{SessionID: "s1", UserID: "u1"}, "{}")
	s.MergeAnalysis(map[string]any{"angle": "国潮联名", "audience": "Z世代"})
	s.MergeAnalysis(map[string]any{"angle": "冷泡新喝法"})

	assert.Equal(t, "冷泡新喝法", s.Analysis["angle"], "later increments overwrite the key")
	assert.Equal(t, "Z世代", s.Analysis["audience"], "keys the increment does not set are preserved")
}

func TestMergeAnalysis_EmptyIncrementIsNoOp(t *testing.T) {
	s := NewMetaState(ProcessedInput{}, "{}")
	s.Analysis["angle"] = "原有角度"
	s.MergeAnalysis(nil)
	s.MergeAnalysis(map[string]any{})
	assert.Equal(t, map[string]any{"angle": "原有角度"}, s.Analysis)
}

func TestRecordStageDuration_Accumulates(t *testing.T) {
	s := NewMetaState(ProcessedInput{}, "{}")
	s.RecordStageDuration("parallel", 0.5)
	s.RecordStageDuration("parallel", 0.25)
	assert.InDelta(t, 0.75, s.StageDurations["parallel"], 1e-9)
}

func TestPlanContains(t *testing.T) {
	p := Plan{Steps: []PlanStep{{Step: StepAnalyze}, {Step: StepGenerate}}}
	assert.True(t, p.Contains(StepGenerate))
	assert.False(t, p.Contains(StepEvaluate))
}

func TestIsParallelSafe(t *testing.T) {
	assert.True(t, IsParallelSafe(StepWebSearch))
	assert.True(t, IsParallelSafe(StepMemoryQuery))
	assert.True(t, IsParallelSafe(StepWeiboHotspot))
	assert.False(t, IsParallelSafe(StepAnalyze))
	assert.False(t, IsParallelSafe(StepGenerate))
	assert.False(t, IsParallelSafe("campaign_plan"))
}

func TestHotspotPlatform(t *testing.T) {
	assert.Equal(t, "B站", HotspotPlatform(StepBilibiliHotspot))
	assert.Equal(t, "抖音", HotspotPlatform(StepDouyinHotspot))
	assert.Empty(t, HotspotPlatform(StepAnalyze))
}
