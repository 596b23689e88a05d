// Package memory assembles the user's long-term preference context from the
// profile and interaction stores: brand facts, success cases, profile
// summary, and recent interactions, layered deterministically and cached.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/store"
)

const maxRecentInteractions = 5

// ContextFingerprint is the stable discriminant the analyze cache keys on.
// Both slices are sorted.
type ContextFingerprint struct {
	Tags         []string `json:"tags"`
	RecentTopics []string `json:"recent_topics"`
}

// PreferenceResult is the assembled long-term context for one request.
type PreferenceResult struct {
	PreferenceContext  string             `json:"preference_context"`
	ContextFingerprint ContextFingerprint `json:"context_fingerprint"`
	EffectiveTags      []string           `json:"effective_tags"`
}

// Service is the memory service over the profile and history stores.
type Service struct {
	profiles  store.ProfileStore
	histories store.HistoryStore
	cache     *cache.SmartCache
}

// NewService creates the memory service.
func NewService(profiles store.ProfileStore, histories store.HistoryStore, smartCache *cache.SmartCache) *Service {
	return &Service{profiles: profiles, histories: histories, cache: smartCache}
}

// GetPreferenceContext builds the preference context for a request. Layering
// order is fixed: brand facts, then success cases, then profile summary,
// then up to five recent interactions. tagsOverride replaces the profile
// tags when non-empty. The result is cached under a memory: fingerprint
// keyed by (user, brand, product, topic, sorted tags, epoch); profile
// writes rotate the user's epoch, which orphans every cached context.
func (s *Service) GetPreferenceContext(ctx context.Context, userID, brand, product, topic string, tagsOverride []string) (*PreferenceResult, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	tags := tagsOverride
	if len(tags) == 0 && profile != nil {
		tags = profile.Tags
	}
	sortedTags := cache.SortedTags(tags)

	key := cache.Fingerprint(cache.PrefixMemory, map[string]any{
		"user_id": userID,
		"brand":   brand,
		"product": product,
		"topic":   topic,
		"tags":    sortedTags,
		"epoch":   s.contextEpoch(ctx, userID),
	})

	raw, hit, err := s.cache.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		return s.assemble(ctx, userID, profile, sortedTags)
	}, cache.TTLProfile)
	if err != nil {
		return nil, err
	}
	if hit {
		slog.Debug("Memory context served from cache", "user_id", userID)
	}

	var result PreferenceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached memory context: %w", err)
	}
	return &result, nil
}

// AddBrandFact persists a brand fact and invalidates the user's cached
// preference context.
func (s *Service) AddBrandFact(ctx context.Context, userID string, fact models.BrandFact) error {
	if err := s.profiles.AddBrandFact(ctx, userID, fact); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, s.epochKey(userID))
	return nil
}

// AddTags persists profile tags and invalidates the user's cached
// preference context.
func (s *Service) AddTags(ctx context.Context, userID string, tags []string) error {
	if err := s.profiles.AddTags(ctx, userID, tags); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, s.epochKey(userID))
	return nil
}

func (s *Service) epochKey(userID string) string {
	return cache.PrefixMemory + "epoch:" + userID
}

// contextEpoch returns the user's current cache epoch, minting one when
// absent. Profile writes delete the epoch; the next read mints a fresh one,
// so every context fingerprint minted under the old epoch goes stale at
// once. An unreadable epoch store degrades to per-request keys.
func (s *Service) contextEpoch(ctx context.Context, userID string) string {
	raw, _, err := s.cache.GetOrSet(ctx, s.epochKey(userID), func(ctx context.Context) (any, error) {
		return uuid.NewString(), nil
	}, cache.TTLProfile)
	if err != nil {
		return uuid.NewString()
	}
	var epoch string
	if err := json.Unmarshal(raw, &epoch); err != nil {
		return uuid.NewString()
	}
	return epoch
}

// assemble builds the preference context deterministically from store reads.
func (s *Service) assemble(ctx context.Context, userID string, profile *models.UserProfile, sortedTags []string) (*PreferenceResult, error) {
	var sb strings.Builder

	if profile != nil {
		if len(profile.BrandFacts) > 0 {
			sb.WriteString("【品牌事实】\n")
			for _, f := range profile.BrandFacts {
				sb.WriteString("- ")
				if f.Category != "" {
					sb.WriteString(f.Category)
					sb.WriteString("：")
				}
				sb.WriteString(f.Fact)
				sb.WriteString("\n")
			}
		}
		if len(profile.SuccessCases) > 0 {
			sb.WriteString("【成功案例】\n")
			for _, c := range profile.SuccessCases {
				sb.WriteString("- ")
				sb.WriteString(c.Title)
				if c.Outcome != "" {
					sb.WriteString("，效果：")
					sb.WriteString(c.Outcome)
				}
				sb.WriteString("\n")
			}
		}
		if summary := profileSummary(profile); summary != "" {
			sb.WriteString("【用户画像】\n")
			sb.WriteString(summary)
			sb.WriteString("\n")
		}
	}

	recent, err := s.histories.RecentByUser(ctx, userID, maxRecentInteractions)
	if err != nil {
		// 历史不可用时仍返回画像部分
		slog.Warn("Recent interactions unavailable", "user_id", userID, "error", err)
		recent = nil
	}
	topics := make([]string, 0, len(recent))
	if len(recent) > 0 {
		sb.WriteString("【近期互动】\n")
		for _, rec := range recent {
			query := extractQuery(rec.UserInput)
			if query == "" {
				continue
			}
			sb.WriteString("- ")
			sb.WriteString(query)
			sb.WriteString("\n")
			topics = append(topics, query)
		}
	}

	return &PreferenceResult{
		PreferenceContext: strings.TrimRight(sb.String(), "\n"),
		ContextFingerprint: ContextFingerprint{
			Tags:         sortedTags,
			RecentTopics: cache.SortedTags(topics),
		},
		EffectiveTags: sortedTags,
	}, nil
}

// GetRecentConversationText renders the recent exchange as a 用户:/助手:
// transcript, chronological. It prefers the current session's turns.
func (s *Service) GetRecentConversationText(ctx context.Context, userID, sessionID string, limit int) (string, error) {
	if limit <= 0 {
		limit = 5
	}
	recent, err := s.histories.RecentBySession(ctx, sessionID, limit)
	if err != nil {
		return "", fmt.Errorf("failed to load session history: %w", err)
	}
	if len(recent) == 0 {
		recent, err = s.histories.RecentByUser(ctx, userID, limit)
		if err != nil {
			return "", fmt.Errorf("failed to load user history: %w", err)
		}
	}

	var sb strings.Builder
	// store order is newest-first; render chronologically
	for i := len(recent) - 1; i >= 0; i-- {
		rec := recent[i]
		if q := extractQuery(rec.UserInput); q != "" {
			sb.WriteString("用户: ")
			sb.WriteString(q)
			sb.WriteString("\n")
		}
		if rec.AIOutput != "" {
			sb.WriteString("助手: ")
			sb.WriteString(truncate(rec.AIOutput, 200))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// GetUserSummary renders a one-line summary for casual replies.
func (s *Service) GetUserSummary(ctx context.Context, userID string) string {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil || profile == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if profile.BrandName != "" {
		parts = append(parts, "品牌 "+profile.BrandName)
	}
	if profile.Industry != "" {
		parts = append(parts, profile.Industry+"行业")
	}
	if profile.PreferredStyle != "" {
		parts = append(parts, "偏好"+profile.PreferredStyle+"风格")
	}
	return strings.Join(parts, "，")
}

func profileSummary(p *models.UserProfile) string {
	parts := make([]string, 0, 4)
	if p.BrandName != "" {
		parts = append(parts, "品牌："+p.BrandName)
	}
	if p.Industry != "" {
		parts = append(parts, "行业："+p.Industry)
	}
	if p.PreferredStyle != "" {
		parts = append(parts, "偏好风格："+p.PreferredStyle)
	}
	if len(p.Tags) > 0 {
		parts = append(parts, "标签："+strings.Join(p.Tags, "、"))
	}
	return strings.Join(parts, "；")
}

// extractQuery pulls raw_query out of a serialized ProcessedInput; falls
// back to the raw string for legacy rows.
func extractQuery(userInput string) string {
	var input models.ProcessedInput
	if err := json.Unmarshal([]byte(userInput), &input); err == nil && input.RawQuery != "" {
		return input.RawQuery
	}
	return strings.TrimSpace(userInput)
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
