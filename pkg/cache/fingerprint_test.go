package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_StableUnderNormalization(t *testing.T) {
	a := Fingerprint(PrefixAnalyze, map[string]any{
		"brand": "  华为  手机 ",
		"topic": "夏季\n推广",
	})
	b := Fingerprint(PrefixAnalyze, map[string]any{
		"brand": "华为 手机",
		"topic": "夏季 推广",
	})
	assert.Equal(t, a, b)
}

func TestFingerprint_NilBecomesEmptyString(t *testing.T) {
	a := Fingerprint(PrefixMemory, map[string]any{"product": nil})
	b := Fingerprint(PrefixMemory, map[string]any{"product": ""})
	assert.Equal(t, a, b)
}

func TestFingerprint_PrefixDiscriminates(t *testing.T) {
	data := map[string]any{"q": "降噪耳机"}
	assert.NotEqual(t, Fingerprint(PrefixAnalyze, data), Fingerprint(PrefixRetrieval, data))
}

func TestFingerprint_TagOrderIrrelevantWhenSorted(t *testing.T) {
	// E6: two requests differing only in tag order must hit the same key
	// when callers sort tags before building the fingerprint.
	a := Fingerprint(PrefixAnalyze, map[string]any{
		"brand": "华为",
		"tags":  SortedTags([]string{"年轻化", "科技感", "B站"}),
	})
	b := Fingerprint(PrefixAnalyze, map[string]any{
		"brand": "华为",
		"tags":  SortedTags([]string{"B站", "科技感", "年轻化"}),
	})
	assert.Equal(t, a, b)
}

func TestFingerprint_NestedMapsNormalized(t *testing.T) {
	a := Fingerprint(PrefixAnalyze, map[string]any{
		"ctx": map[string]any{"topic": " 国 潮 ", "n": 3},
	})
	b := Fingerprint(PrefixAnalyze, map[string]any{
		"ctx": map[string]any{"n": 3, "topic": "国 潮"},
	})
	assert.Equal(t, a, b)
}

func TestFingerprint_ValueChangesKey(t *testing.T) {
	a := Fingerprint(PrefixAnalyze, map[string]any{"brand": "华为"})
	b := Fingerprint(PrefixAnalyze, map[string]any{"brand": "小米"})
	assert.NotEqual(t, a, b)
}
