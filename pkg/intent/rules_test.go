package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMarketingIntent_StrongPattern(t *testing.T) {
	res := ClassifyMarketingIntent("帮我写一篇新品上市的推广方案", nil)
	assert.True(t, res.IsMarketing)
	assert.GreaterOrEqual(t, res.Confidence, 0.85)
	assert.Equal(t, []string{"strong_pattern"}, res.MatchedCategories)
}

func TestClassifyMarketingIntent_KeywordCombination(t *testing.T) {
	res := ClassifyMarketingIntent("小红书账号涨粉的运营选题怎么定", nil)
	assert.True(t, res.IsMarketing)
	assert.NotEmpty(t, res.MatchedCategories)
}

func TestClassifyMarketingIntent_SmallTalk(t *testing.T) {
	res := ClassifyMarketingIntent("你好，今天过得怎么样", nil)
	assert.False(t, res.IsMarketing)
	assert.GreaterOrEqual(t, res.Confidence, nonMarketingConfident)
}

func TestClassifyMarketingIntent_HistoryCarriesContext(t *testing.T) {
	bare := ClassifyMarketingIntent("再换个角度", nil)
	withHistory := ClassifyMarketingIntent("再换个角度", []string{
		"用户: 帮我想几个咖啡品牌的推广文案方向",
		"助手: 可以从场景营销和情绪价值入手……",
	})

	// A marketing-heavy thread makes the classifier less sure the follow-up
	// is non-marketing.
	assert.False(t, bare.IsMarketing)
	assert.Less(t, withHistory.Confidence, bare.Confidence)
}

func TestClassifyMarketingIntent_EmptyInput(t *testing.T) {
	res := ClassifyMarketingIntent("   ", nil)
	assert.False(t, res.IsMarketing)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestClassifyMarketingIntent_ConfidenceClamped(t *testing.T) {
	res := ClassifyMarketingIntent("品牌推广营销文案方案，抖音小红书投放涨粉转化，运营选题直播引流", nil)
	assert.True(t, res.IsMarketing)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}
