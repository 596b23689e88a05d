// Package document exposes session-bound parsed documents as reference text
// for prompts. Document text is supplementary material only; it never
// replaces user-specified brand, product, or topic.
package document

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/store"
)

const (
	defaultMaxPerDoc = 2000
	defaultMaxTotal  = 6000
)

// Service renders session document context.
type Service struct {
	documents store.DocumentStore
}

func NewService(documents store.DocumentStore) *Service {
	return &Service{documents: documents}
}

// GetSessionDocumentContext concatenates the session's parsed documents,
// each labelled 【文档：<name>】 and truncated to maxPerDoc runes, separated
// by a horizontal rule, the whole bounded by maxTotal runes. Never errors;
// returns "" when the session has no documents or the store fails.
func (s *Service) GetSessionDocumentContext(ctx context.Context, sessionID string, maxPerDoc, maxTotal int) string {
	if maxPerDoc <= 0 {
		maxPerDoc = defaultMaxPerDoc
	}
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotal
	}

	docs, err := s.documents.BySession(ctx, sessionID)
	if err != nil {
		slog.Warn("Session documents unavailable", "session_id", sessionID, "error", err)
		return ""
	}
	if len(docs) == 0 {
		return ""
	}

	parts := make([]string, 0, len(docs))
	total := 0
	for _, doc := range docs {
		text := truncateRunes(strings.TrimSpace(doc.ParsedText), maxPerDoc)
		if text == "" {
			continue
		}
		part := "【文档：" + doc.OriginalFilename + "】\n" + text
		partLen := len([]rune(part))
		if total+partLen > maxTotal {
			remaining := maxTotal - total
			if remaining <= len([]rune("【文档："+doc.OriginalFilename+"】\n")) {
				break
			}
			part = truncateRunes(part, remaining)
			parts = append(parts, part)
			break
		}
		parts = append(parts, part)
		total += partLen
	}
	return strings.Join(parts, "\n---\n")
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
