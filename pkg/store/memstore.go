package store

import (
	"context"
	"sync"
	"time"

	"github.com/deepthink-ai/deepthink/pkg/models"
)

// In-memory store implementations. Used in tests and when the engine runs
// without a database.

// MemProfileStore is the in-memory ProfileStore.
type MemProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
}

func NewMemProfileStore() *MemProfileStore {
	return &MemProfileStore{profiles: make(map[string]*models.UserProfile)}
}

func (s *MemProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemProfileStore) Upsert(ctx context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *profile
	now := time.Now()
	if existing, ok := s.profiles[profile.UserID]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.profiles[profile.UserID] = &copied
	return nil
}

func (s *MemProfileStore) AddBrandFact(ctx context.Context, userID string, fact models.BrandFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID, CreatedAt: time.Now()}
		s.profiles[userID] = p
	}
	p.BrandFacts = append(p.BrandFacts, fact)
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemProfileStore) AddTags(ctx context.Context, userID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID, CreatedAt: time.Now()}
		s.profiles[userID] = p
	}
	p.Tags = dedupe(p.Tags, tags)
	p.UpdatedAt = time.Now()
	return nil
}

// MemHistoryStore is the in-memory HistoryStore.
type MemHistoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []models.InteractionRecord
}

func NewMemHistoryStore() *MemHistoryStore {
	return &MemHistoryStore{nextID: 1}
}

func (s *MemHistoryStore) Append(ctx context.Context, rec *models.InteractionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *rec
	stored.ID = s.nextID
	stored.CreatedAt = time.Now()
	s.nextID++
	s.records = append(s.records, stored)
	return stored.ID, nil
}

func (s *MemHistoryStore) RecentByUser(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error) {
	return s.recent(func(r models.InteractionRecord) bool { return r.UserID == userID }, limit), nil
}

func (s *MemHistoryStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.InteractionRecord, error) {
	return s.recent(func(r models.InteractionRecord) bool { return r.SessionID == sessionID }, limit), nil
}

func (s *MemHistoryStore) recent(match func(models.InteractionRecord) bool, limit int) []models.InteractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	out := make([]models.InteractionRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if match(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out
}

func (s *MemHistoryStore) Rate(ctx context.Context, id int64, rating int, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].UserRating = &rating
			s.records[i].UserComment = &comment
			return nil
		}
	}
	return ErrNotFound
}

// MemDocumentStore is the in-memory DocumentStore.
type MemDocumentStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   []models.SessionDocument
}

func NewMemDocumentStore() *MemDocumentStore {
	return &MemDocumentStore{nextID: 1}
}

func (s *MemDocumentStore) Add(ctx context.Context, doc *models.SessionDocument) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *doc
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.nextID++
	s.docs = append(s.docs, stored)
	return stored.ID, nil
}

func (s *MemDocumentStore) BySession(ctx context.Context, sessionID string) ([]models.SessionDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SessionDocument
	for _, d := range s.docs {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemDocumentStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	kept := s.docs[:0]
	var deleted int64
	for _, d := range s.docs {
		if d.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	s.docs = kept
	return deleted, nil
}
