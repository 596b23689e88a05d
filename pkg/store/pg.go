package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepthink-ai/deepthink/pkg/models"
)

// PGProfileStore is the pgx-backed ProfileStore.
type PGProfileStore struct {
	pool *pgxpool.Pool
}

func NewPGProfileStore(client *Client) *PGProfileStore {
	return &PGProfileStore{pool: client.Pool()}
}

func (s *PGProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var (
		p                              models.UserProfile
		tagsJSON, factsJSON, casesJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, brand_name, industry, preferred_style, tags, brand_facts, success_cases, created_at, updated_at
		FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.BrandName, &p.Industry, &p.PreferredStyle,
		&tagsJSON, &factsJSON, &casesJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := json.Unmarshal(tagsJSON, &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode profile tags: %w", err)
	}
	if err := json.Unmarshal(factsJSON, &p.BrandFacts); err != nil {
		return nil, fmt.Errorf("failed to decode brand facts: %w", err)
	}
	if err := json.Unmarshal(casesJSON, &p.SuccessCases); err != nil {
		return nil, fmt.Errorf("failed to decode success cases: %w", err)
	}
	return &p, nil
}

func (s *PGProfileStore) Upsert(ctx context.Context, profile *models.UserProfile) error {
	tagsJSON, err := json.Marshal(sliceOrEmpty(profile.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	factsJSON, err := json.Marshal(factsOrEmpty(profile.BrandFacts))
	if err != nil {
		return fmt.Errorf("failed to encode brand facts: %w", err)
	}
	casesJSON, err := json.Marshal(casesOrEmpty(profile.SuccessCases))
	if err != nil {
		return fmt.Errorf("failed to encode success cases: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, brand_name, industry, preferred_style, tags, brand_facts, success_cases)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			brand_name = EXCLUDED.brand_name,
			industry = EXCLUDED.industry,
			preferred_style = EXCLUDED.preferred_style,
			tags = EXCLUDED.tags,
			brand_facts = EXCLUDED.brand_facts,
			success_cases = EXCLUDED.success_cases,
			updated_at = now()`,
		profile.UserID, profile.BrandName, profile.Industry, profile.PreferredStyle,
		tagsJSON, factsJSON, casesJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *PGProfileStore) AddBrandFact(ctx context.Context, userID string, fact models.BrandFact) error {
	factJSON, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("failed to encode brand fact: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_profiles
		SET brand_facts = brand_facts || $2::jsonb, updated_at = now()
		WHERE user_id = $1`, userID, factJSON)
	if err != nil {
		return fmt.Errorf("failed to add brand fact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// First fact for a user without a profile row yet
		return s.Upsert(ctx, &models.UserProfile{
			UserID:     userID,
			BrandFacts: []models.BrandFact{fact},
		})
	}
	return nil
}

func (s *PGProfileStore) AddTags(ctx context.Context, userID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	profile, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.Upsert(ctx, &models.UserProfile{UserID: userID, Tags: dedupe(nil, tags)})
	}
	if err != nil {
		return err
	}
	profile.Tags = dedupe(profile.Tags, tags)
	return s.Upsert(ctx, profile)
}

// PGHistoryStore is the pgx-backed HistoryStore.
type PGHistoryStore struct {
	pool *pgxpool.Pool
}

func NewPGHistoryStore(client *Client) *PGHistoryStore {
	return &PGHistoryStore{pool: client.Pool()}
}

func (s *PGHistoryStore) Append(ctx context.Context, rec *models.InteractionRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO interaction_histories (user_id, session_id, user_input, ai_output)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.UserID, rec.SessionID, rec.UserInput, rec.AIOutput,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append interaction: %w", err)
	}
	return id, nil
}

func (s *PGHistoryStore) RecentByUser(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error) {
	return s.recent(ctx, `
		SELECT id, user_id, session_id, user_input, ai_output, created_at, user_rating, user_comment
		FROM interaction_histories WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

func (s *PGHistoryStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.InteractionRecord, error) {
	return s.recent(ctx, `
		SELECT id, user_id, session_id, user_input, ai_output, created_at, user_rating, user_comment
		FROM interaction_histories WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
}

func (s *PGHistoryStore) recent(ctx context.Context, query, key string, limit int) ([]models.InteractionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.InteractionRecord
	for rows.Next() {
		var rec models.InteractionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.UserInput,
			&rec.AIOutput, &rec.CreatedAt, &rec.UserRating, &rec.UserComment); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGHistoryStore) Rate(ctx context.Context, id int64, rating int, comment string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE interaction_histories SET user_rating = $2, user_comment = $3 WHERE id = $1`,
		id, rating, comment)
	if err != nil {
		return fmt.Errorf("failed to rate interaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PGDocumentStore is the pgx-backed DocumentStore.
type PGDocumentStore struct {
	pool *pgxpool.Pool
}

func NewPGDocumentStore(client *Client) *PGDocumentStore {
	return &PGDocumentStore{pool: client.Pool()}
}

func (s *PGDocumentStore) Add(ctx context.Context, doc *models.SessionDocument) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO session_documents (session_id, original_filename, parsed_text)
		VALUES ($1, $2, $3) RETURNING id`,
		doc.SessionID, doc.OriginalFilename, doc.ParsedText,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to add session document: %w", err)
	}
	return id, nil
}

func (s *PGDocumentStore) BySession(ctx context.Context, sessionID string) ([]models.SessionDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, original_filename, parsed_text, created_at
		FROM session_documents WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session documents: %w", err)
	}
	defer rows.Close()

	var out []models.SessionDocument
	for rows.Next() {
		var doc models.SessionDocument
		if err := rows.Scan(&doc.ID, &doc.SessionID, &doc.OriginalFilename,
			&doc.ParsedText, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PGDocumentStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM session_documents WHERE created_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func factsOrEmpty(f []models.BrandFact) []models.BrandFact {
	if f == nil {
		return []models.BrandFact{}
	}
	return f
}

func casesOrEmpty(c []models.SuccessCase) []models.SuccessCase {
	if c == nil {
		return []models.SuccessCase{}
	}
	return c
}

func dedupe(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, t := range existing {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range add {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
