package ports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepthink-ai/deepthink/pkg/config"
)

func TestFormatResultsAsContext(t *testing.T) {
	out := FormatResultsAsContext([]SearchResult{
		{Title: "新茶饮品牌观察", Snippet: "冷泡茶赛道增长明显", Source: "行业周报"},
		{Title: "夏季营销案例", Snippet: "场景化内容表现更好"},
	})
	assert.Contains(t, out, "检索到 2 条网页结果")
	assert.Contains(t, out, "1. 新茶饮品牌观察（行业周报）")
	assert.Contains(t, out, "冷泡茶赛道增长明显")

	assert.Empty(t, FormatResultsAsContext(nil))
}

func TestMockSearch(t *testing.T) {
	results, err := NewMockSearch().Search(context.Background(), "冷泡茶推广", 3, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Contains(t, results[0].Title, "冷泡茶推广")
}

func TestHTTPSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"webPages":{"value":[
			{"name":"结果一","snippet":"摘要一","url":"https://a.example","siteName":"站点A"},
			{"name":"结果二","snippet":"摘要二","url":"https://b.example","siteName":"站点B"}
		]}}}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_SEARCH_KEY", "test-key")
	s, err := NewHTTPSearch(srv.URL, "TEST_SEARCH_KEY")
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "测试", 2, "web")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "结果一", results[0].Title)
	assert.Equal(t, "站点B", results[1].Source)
}

func TestHTTPSearch_MissingKey(t *testing.T) {
	_, err := NewHTTPSearch("https://example.com", "DEFINITELY_UNSET_KEY_ENV")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_UNSET_KEY_ENV")
}

func TestHTTPSearch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("TEST_SEARCH_KEY", "test-key")
	s, err := NewHTTPSearch(srv.URL, "TEST_SEARCH_KEY")
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "测试", 2, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPKnowledge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"passages":["要点一","要点二","要点三"]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_KB_KEY", "kb-key")
	k, err := NewHTTPKnowledge(srv.URL, "TEST_KB_KEY")
	require.NoError(t, err)

	passages, err := k.Retrieve(context.Background(), "种草方法论", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"要点一", "要点二", "要点三"}, passages)
}

func TestMemSampleLibrary(t *testing.T) {
	lib := NewMemSampleLibrary()
	ctx := context.Background()

	n, err := lib.Ingest(ctx, []Sample{
		{VideoID: "v1", Platform: "B站", Category: "美食", Title: "探店"},
		{VideoID: "v2", Platform: "抖音", Category: "美食", Title: "教程"},
		{VideoID: "", Title: "no id"},
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := lib.Search(ctx, "B站", "", 10, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "v1", found[0].VideoID)

	got, err := lib.GetByID(ctx, "v2", "抖音")
	require.NoError(t, err)
	assert.Equal(t, "教程", got.Title)

	_, err = lib.GetByID(ctx, "v2", "微博")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticPlatformRules(t *testing.T) {
	rules := NewStaticPlatformRules()
	ctx := context.Background()

	rs, err := rules.GetRules(ctx, "B站")
	require.NoError(t, err)
	assert.Equal(t, "B站", rs.Platform)
	assert.NotEmpty(t, rs.SensitiveWords)

	words, err := rules.SensitiveWords(ctx, "抖音")
	require.NoError(t, err)
	assert.Contains(t, words, "最")

	_, err = rules.GetRules(ctx, "telegram")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, rules.Reload(ctx))
	_, err = rules.GetRules(ctx, "微博")
	assert.NoError(t, err)
}

func TestMemCaseTemplate(t *testing.T) {
	ct := NewMemCaseTemplate()
	ctx := context.Background()

	id, err := ct.Create(ctx, CaseTemplateRecord{Title: "开业活动模板", Platform: "微博"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := ct.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "开业活动模板", rec.Title)

	require.NoError(t, ct.AddScore(ctx, CaseScore{CaseID: id, Score: 8.5}))
	scores, err := ct.GetScores(ctx, id)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 8.5, scores[0].Score)

	assert.ErrorIs(t, ct.AddScore(ctx, CaseScore{CaseID: "missing", Score: 1}), ErrNotFound)

	require.NoError(t, ct.Delete(ctx, id))
	_, err = ct.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemDataLoop(t *testing.T) {
	dl := NewMemDataLoop()
	ctx := context.Background()

	require.NoError(t, dl.RecordFeedback(ctx, Feedback{UserID: "u1", SessionID: "s1", Rating: 5}))
	require.NoError(t, dl.RecordFeedback(ctx, Feedback{UserID: "u2", SessionID: "s2", Rating: 3}))

	fbs, err := dl.GetFeedbacks(ctx, "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, fbs, 1)
	assert.Equal(t, 5, fbs[0].Rating)

	require.NoError(t, dl.RecordPlatformMetric(ctx, PlatformMetric{Platform: "B站", VideoID: "v1", Name: "views", Value: 12000}))
	require.NoError(t, dl.RecordPlatformMetric(ctx, PlatformMetric{Platform: "B站", VideoID: "v1", Name: "likes", Value: 800}))

	perf, err := dl.GetVideoPerformance(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, perf, 2)

	metrics, err := dl.GetPlatformMetrics(ctx, "B站", "views", 10)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 12000.0, metrics[0].Value)
}

func TestNewCapabilities_DefaultsToMocks(t *testing.T) {
	caps := NewCapabilities(config.PortsConfig{})
	assert.IsType(t, &MockSearch{}, caps.Search)
	assert.IsType(t, &MockKnowledge{}, caps.Knowledge)
	assert.NotNil(t, caps.Rules)
	assert.NotNil(t, caps.DataLoop)
}

func TestNewCapabilities_HTTPMissingKeyFallsBack(t *testing.T) {
	caps := NewCapabilities(config.PortsConfig{
		Search: config.SearchConfig{Adapter: "http", BaseURL: "https://example.com", APIKeyEnv: "UNSET_SEARCH_KEY_ENV"},
	})
	assert.IsType(t, &MockSearch{}, caps.Search)
}
