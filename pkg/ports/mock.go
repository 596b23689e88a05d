package ports

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mock adapters back every port with deterministic in-memory behavior. They
// serve tests and local development without any external service.

// MockSearch returns canned results echoing the query.
type MockSearch struct{}

func NewMockSearch() *MockSearch { return &MockSearch{} }

func (m *MockSearch) Search(ctx context.Context, query string, numResults int, searchType string) ([]SearchResult, error) {
	if numResults <= 0 {
		numResults = 3
	}
	if numResults > 5 {
		numResults = 5
	}
	results := make([]SearchResult, 0, numResults)
	for i := 0; i < numResults; i++ {
		results = append(results, SearchResult{
			Title:   fmt.Sprintf("关于「%s」的市场观察 %d", query, i+1),
			Snippet: fmt.Sprintf("围绕 %s 的近期讨论与数据摘要。", query),
			URL:     fmt.Sprintf("https://example.com/search/%d", i+1),
			Source:  "mock",
		})
	}
	return results, nil
}

// MockKnowledge returns a fixed passage mentioning the query.
type MockKnowledge struct{}

func NewMockKnowledge() *MockKnowledge { return &MockKnowledge{} }

func (m *MockKnowledge) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 3
	}
	passages := make([]string, 0, topK)
	for i := 0; i < topK; i++ {
		passages = append(passages, fmt.Sprintf("知识库片段 %d：与「%s」相关的方法论要点。", i+1, query))
	}
	return passages, nil
}

// MockHotspot returns platform-labelled trending items.
type MockHotspot struct{}

func NewMockHotspot() *MockHotspot { return &MockHotspot{} }

func (m *MockHotspot) Fetch(ctx context.Context, platform string, limit int) ([]HotspotItem, error) {
	if limit <= 0 {
		limit = 5
	}
	items := make([]HotspotItem, 0, limit)
	for i := 0; i < limit; i++ {
		items = append(items, HotspotItem{
			Title:    fmt.Sprintf("%s热点话题 %d", platform, i+1),
			Heat:     int64((limit - i) * 10000),
			Category: "综合",
		})
	}
	return items, nil
}

// MockMultimodal returns fixed analysis records.
type MockMultimodal struct{}

func NewMockMultimodal() *MockMultimodal { return &MockMultimodal{} }

func (m *MockMultimodal) AnalyzeImage(ctx context.Context, urlOrData string, options map[string]string) (*ImageAnalysisResult, error) {
	return &ImageAnalysisResult{
		Description: "画面主体清晰，构图居中",
		Scene:       "室内",
		Style:       "简洁",
	}, nil
}

func (m *MockMultimodal) AnalyzeVideo(ctx context.Context, url string, options map[string]string) (*VideoAnalysisResult, error) {
	return &VideoAnalysisResult{
		Summary:  "开场点题，中段演示，结尾引导关注",
		Duration: 63,
		Topics:   []string{"产品演示"},
	}, nil
}

// MockPrediction scores by feature count; deterministic.
type MockPrediction struct{}

func NewMockPrediction() *MockPrediction { return &MockPrediction{} }

func (m *MockPrediction) PredictViral(ctx context.Context, features map[string]any, platform string) (*ViralPrediction, error) {
	score := 0.5 + float64(len(features)%5)*0.08
	return &ViralPrediction{Score: score, Confidence: 0.6, Factors: []string{"题材热度", "发布时间"}}, nil
}

func (m *MockPrediction) PredictCTR(ctx context.Context, coverFeatures map[string]any, title, platform string) (*CTRPrediction, error) {
	ctr := 0.03 + float64(len(title)%10)*0.002
	return &CTRPrediction{CTR: ctr, Confidence: 0.55, Factors: []string{"标题长度", "封面对比度"}}, nil
}

// MockDecomposition builds a structure from whatever input is present.
type MockDecomposition struct{}

func NewMockDecomposition() *MockDecomposition { return &MockDecomposition{} }

func (m *MockDecomposition) Decompose(ctx context.Context, req DecomposeRequest) (*VideoContentStructure, error) {
	out := &VideoContentStructure{
		Hook:     "前三秒抛出冲突",
		Sections: []string{"背景铺垫", "核心演示", "效果对比"},
		CTA:      "引导关注与评论",
		Platform: req.Platform,
	}
	if req.Multimodal != nil {
		out.Highlight = req.Multimodal.Summary
	}
	return out, nil
}

// MemSampleLibrary is the in-memory sample library adapter.
type MemSampleLibrary struct {
	mu      sync.RWMutex
	samples map[string]Sample // video_id → sample
}

func NewMemSampleLibrary() *MemSampleLibrary {
	return &MemSampleLibrary{samples: make(map[string]Sample)}
}

func (l *MemSampleLibrary) Ingest(ctx context.Context, samples []Sample, batchSize int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, s := range samples {
		if s.VideoID == "" {
			continue
		}
		l.samples[s.VideoID] = s
		count++
	}
	return count, nil
}

func (l *MemSampleLibrary) Search(ctx context.Context, platform, category string, topK int, filters map[string]string) ([]Sample, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if topK <= 0 {
		topK = 10
	}
	out := make([]Sample, 0, topK)
	for _, s := range l.samples {
		if platform != "" && s.Platform != platform {
			continue
		}
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (l *MemSampleLibrary) GetByID(ctx context.Context, videoID, platform string) (*Sample, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.samples[videoID]
	if !ok || (platform != "" && s.Platform != platform) {
		return nil, ErrNotFound
	}
	return &s, nil
}

// StaticPlatformRules serves a fixed per-platform ruleset map.
type StaticPlatformRules struct {
	mu    sync.RWMutex
	rules map[string]RuleSet
}

// NewStaticPlatformRules seeds rules for the three supported platforms.
func NewStaticPlatformRules() *StaticPlatformRules {
	return &StaticPlatformRules{rules: defaultRuleSets()}
}

func defaultRuleSets() map[string]RuleSet {
	return map[string]RuleSet{
		"B站": {
			Platform:         "B站",
			SensitiveWords:   []string{"最", "第一", "绝对"},
			ProhibitedVisual: []string{"二维码水印"},
			Thresholds:       map[string]float64{"title_max_len": 80},
		},
		"微博": {
			Platform:         "微博",
			SensitiveWords:   []string{"最", "国家级"},
			ProhibitedVisual: []string{"外链二维码"},
			Thresholds:       map[string]float64{"title_max_len": 30},
		},
		"抖音": {
			Platform:         "抖音",
			SensitiveWords:   []string{"最", "治愈", "保证"},
			ProhibitedVisual: []string{"诱导点赞贴片"},
			Thresholds:       map[string]float64{"title_max_len": 55},
		},
	}
}

func (r *StaticPlatformRules) GetRules(ctx context.Context, platform string) (*RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.rules[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no rules for platform %q", ErrNotFound, platform)
	}
	return &rs, nil
}

func (r *StaticPlatformRules) SensitiveWords(ctx context.Context, platform string) ([]string, error) {
	rs, err := r.GetRules(ctx, platform)
	if err != nil {
		return nil, err
	}
	return rs.SensitiveWords, nil
}

func (r *StaticPlatformRules) ProhibitedVisuals(ctx context.Context, platform string) ([]string, error) {
	rs, err := r.GetRules(ctx, platform)
	if err != nil {
		return nil, err
	}
	return rs.ProhibitedVisual, nil
}

func (r *StaticPlatformRules) Thresholds(ctx context.Context, platform string) (map[string]float64, error) {
	rs, err := r.GetRules(ctx, platform)
	if err != nil {
		return nil, err
	}
	return rs.Thresholds, nil
}

func (r *StaticPlatformRules) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = defaultRuleSets()
	return nil
}

// MemMethodology is the in-memory methodology document store.
type MemMethodology struct {
	mu   sync.RWMutex
	docs map[string]MethodologyDoc // path → doc
}

func NewMemMethodology() *MemMethodology {
	return &MemMethodology{docs: make(map[string]MethodologyDoc)}
}

func (m *MemMethodology) ListDocs(ctx context.Context, category string) ([]MethodologyDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MethodologyDoc, 0, len(m.docs))
	for _, d := range m.docs {
		if category != "" && d.Category != category {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemMethodology) GetDoc(ctx context.Context, path string) (*MethodologyDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemMethodology) CreateDoc(ctx context.Context, doc MethodologyDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.Path]; exists {
		return fmt.Errorf("doc %q already exists", doc.Path)
	}
	doc.Updated = time.Now()
	m.docs[doc.Path] = doc
	return nil
}

func (m *MemMethodology) UpdateDoc(ctx context.Context, doc MethodologyDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.Path]; !exists {
		return ErrNotFound
	}
	doc.Updated = time.Now()
	m.docs[doc.Path] = doc
	return nil
}

func (m *MemMethodology) DeleteDoc(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[path]; !exists {
		return ErrNotFound
	}
	delete(m.docs, path)
	return nil
}

// MemCaseTemplate is the in-memory case template store.
type MemCaseTemplate struct {
	mu     sync.RWMutex
	cases  map[string]CaseTemplateRecord
	scores map[string][]CaseScore
}

func NewMemCaseTemplate() *MemCaseTemplate {
	return &MemCaseTemplate{
		cases:  make(map[string]CaseTemplateRecord),
		scores: make(map[string][]CaseScore),
	}
}

func (c *MemCaseTemplate) Create(ctx context.Context, rec CaseTemplateRecord) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Created = time.Now()
	c.cases[rec.ID] = rec
	return rec.ID, nil
}

func (c *MemCaseTemplate) GetByID(ctx context.Context, id string) (*CaseTemplateRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (c *MemCaseTemplate) List(ctx context.Context, platform string, limit int) ([]CaseTemplateRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	out := make([]CaseTemplateRecord, 0, limit)
	for _, rec := range c.cases {
		if platform != "" && rec.Platform != platform {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemCaseTemplate) Update(ctx context.Context, rec CaseTemplateRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.cases[rec.ID]
	if !ok {
		return ErrNotFound
	}
	rec.Created = existing.Created
	c.cases[rec.ID] = rec
	return nil
}

func (c *MemCaseTemplate) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cases[id]; !ok {
		return ErrNotFound
	}
	delete(c.cases, id)
	delete(c.scores, id)
	return nil
}

func (c *MemCaseTemplate) AddScore(ctx context.Context, score CaseScore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cases[score.CaseID]; !ok {
		return ErrNotFound
	}
	score.Created = time.Now()
	c.scores[score.CaseID] = append(c.scores[score.CaseID], score)
	return nil
}

func (c *MemCaseTemplate) GetScores(ctx context.Context, caseID string) ([]CaseScore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CaseScore(nil), c.scores[caseID]...), nil
}

// MemDataLoop is the in-memory data loop adapter.
type MemDataLoop struct {
	mu        sync.RWMutex
	feedbacks []Feedback
	metrics   []PlatformMetric
}

func NewMemDataLoop() *MemDataLoop { return &MemDataLoop{} }

func (d *MemDataLoop) RecordFeedback(ctx context.Context, fb Feedback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fb.Created = time.Now()
	d.feedbacks = append(d.feedbacks, fb)
	return nil
}

func (d *MemDataLoop) GetFeedbacks(ctx context.Context, userID, sessionID string, limit int) ([]Feedback, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	out := make([]Feedback, 0, limit)
	// newest first
	for i := len(d.feedbacks) - 1; i >= 0 && len(out) < limit; i-- {
		fb := d.feedbacks[i]
		if userID != "" && fb.UserID != userID {
			continue
		}
		if sessionID != "" && fb.SessionID != sessionID {
			continue
		}
		out = append(out, fb)
	}
	return out, nil
}

func (d *MemDataLoop) RecordPlatformMetric(ctx context.Context, m PlatformMetric) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m.Observed.IsZero() {
		m.Observed = time.Now()
	}
	d.metrics = append(d.metrics, m)
	return nil
}

func (d *MemDataLoop) GetPlatformMetrics(ctx context.Context, platform, name string, limit int) ([]PlatformMetric, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]PlatformMetric, 0, limit)
	for i := len(d.metrics) - 1; i >= 0 && len(out) < limit; i-- {
		m := d.metrics[i]
		if platform != "" && m.Platform != platform {
			continue
		}
		if name != "" && m.Name != name {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *MemDataLoop) GetVideoPerformance(ctx context.Context, videoID string) ([]PlatformMetric, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]PlatformMetric, 0, 8)
	for _, m := range d.metrics {
		if m.VideoID == videoID {
			out = append(out, m)
		}
	}
	return out, nil
}
