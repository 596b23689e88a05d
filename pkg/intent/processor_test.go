package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

// fakeInvoker returns a canned reply and counts calls.
type fakeInvoker struct {
	reply string
	err   error
	calls int
}

func (f *fakeInvoker) Invoke(ctx context.Context, messages []llm.Message, taskType, complexity string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestProcess_ShortCasualSkipsLLM(t *testing.T) {
	fake := &fakeInvoker{reply: `{"intent":"free_discussion"}`}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "你好", "s1", "u1", nil)

	assert.Equal(t, models.IntentCasualChat, out.Intent)
	assert.Equal(t, 0, fake.calls, "short greetings must not reach the model")
}

func TestProcess_Command(t *testing.T) {
	fake := &fakeInvoker{}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "/new_chat", "s1", "u1", nil)

	assert.Equal(t, models.IntentCommand, out.Intent)
	assert.Equal(t, "new_chat", out.Command)
	assert.Equal(t, 0, fake.calls)
}

func TestProcess_CommandWithArgs(t *testing.T) {
	p := NewProcessor(&fakeInvoker{})

	out := p.Process(context.Background(), "/export pdf", "s1", "u1", nil)
	assert.Equal(t, models.IntentCommand, out.Intent)
	assert.Equal(t, "export", out.Command)
}

func TestProcess_EmptyInput(t *testing.T) {
	p := NewProcessor(&fakeInvoker{})

	out := p.Process(context.Background(), "   ", "s1", "u1", nil)
	assert.Equal(t, models.IntentCasualChat, out.Intent)
}

func TestProcess_StructuredRequest(t *testing.T) {
	fake := &fakeInvoker{reply: `{"intent":"structured_request","brand_name":"清风茶舍","product_desc":"冷泡茶","topic":"夏日上新","explicit_content_request":false}`}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "帮我们品牌清风茶舍的冷泡茶新品做一套小红书推广方案", "s1", "u1", nil)

	assert.Equal(t, models.IntentStructuredRequest, out.Intent)
	assert.Equal(t, "清风茶舍", out.StructuredData.BrandName)
	assert.Equal(t, "冷泡茶", out.StructuredData.ProductDesc)
	assert.Equal(t, 1, fake.calls)
}

func TestProcess_LLMFailureDefaultsToFreeDiscussion(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("provider down")}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "最近小红书涨粉有什么新打法", "s1", "u1", nil)

	assert.Equal(t, models.IntentFreeDiscussion, out.Intent)
	assert.Empty(t, out.StructuredData.BrandName)
}

func TestProcess_MalformedJSONDefaultsToFreeDiscussion(t *testing.T) {
	fake := &fakeInvoker{reply: "我认为这是营销问题"}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "抖音投放预算怎么分配比较好", "s1", "u1", nil)
	assert.Equal(t, models.IntentFreeDiscussion, out.Intent)
}

func TestProcess_FencedJSONAccepted(t *testing.T) {
	fake := &fakeInvoker{reply: "```json\n{\"intent\":\"free_discussion\"}\n```"}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "聊聊私域运营和投放预算怎么分配", "s1", "u1", nil)
	assert.Equal(t, models.IntentFreeDiscussion, out.Intent)
	assert.Equal(t, 1, fake.calls)
}

func TestProcess_CorrectionCasualToFreeDiscussion(t *testing.T) {
	// Model misreads a marketing question as chit-chat; the keyword
	// correction overrides it.
	fake := &fakeInvoker{reply: `{"intent":"casual_chat"}`}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "冷启动阶段的推广节奏应该怎么定", "s1", "u1", nil)
	assert.Equal(t, models.IntentFreeDiscussion, out.Intent)
}

func TestProcess_CorrectionFreeToStructured(t *testing.T) {
	fake := &fakeInvoker{reply: `{"intent":"free_discussion"}`}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "我司旗下新品上市，帮我做个推广方案", "s1", "u1", nil)
	assert.Equal(t, models.IntentStructuredRequest, out.Intent)
}

func TestProcess_ExplicitContentPhraseOverridesLLM(t *testing.T) {
	fake := &fakeInvoker{reply: `{"intent":"free_discussion","explicit_content_request":false}`}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "帮我写一篇咖啡店开业的宣传文案", "s1", "u1", nil)
	require.True(t, out.ExplicitContentRequest, "rule hit must override the model verdict")
}

func TestProcess_SelfIntroOnCasualTurn(t *testing.T) {
	p := NewProcessor(&fakeInvoker{})

	out := p.Process(context.Background(), "你好呀，我叫林晚，我是做手工皮具的", "s1", "u1", nil)

	// 非营销输入走闲聊，但自我介绍仍被提取
	assert.Equal(t, models.IntentCasualChat, out.Intent)
	assert.Contains(t, out.StructuredData.SelfIntro, "林晚")
	assert.Contains(t, out.StructuredData.SelfIntro, "手工皮具")
}

func TestProcess_DocumentQuery(t *testing.T) {
	fake := &fakeInvoker{reply: `{"intent":"document_query"}`}
	p := NewProcessor(fake)

	out := p.Process(context.Background(), "刚才上传的竞品分析文档里提到的投放渠道有哪些", "s1", "u1", nil)
	assert.Equal(t, models.IntentDocumentQuery, out.Intent)
}

func TestExtractSelfIntro(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"name and business", "我叫阿哲，我是做宠物烘焙的", []string{"阿哲", "宠物烘焙"}},
		{"name only", "大家好我叫苏苏", []string{"苏苏"}},
		{"identity", "我是山海工作室", []string{"山海", "工作室"}},
		{"nothing", "今天天气不错", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSelfIntro(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}
