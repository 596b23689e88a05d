// Package store provides the relational persistence layer: user profiles,
// interaction histories, and session-bound documents. The engine consumes
// these tables; it does not own their schema beyond the embedded migrations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/deepthink-ai/deepthink/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("row not found")

// ProfileStore accesses user_profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
	AddBrandFact(ctx context.Context, userID string, fact models.BrandFact) error
	AddTags(ctx context.Context, userID string, tags []string) error
}

// HistoryStore accesses the append-only interaction_histories.
type HistoryStore interface {
	Append(ctx context.Context, rec *models.InteractionRecord) (int64, error)
	RecentByUser(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error)
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.InteractionRecord, error)
	Rate(ctx context.Context, id int64, rating int, comment string) error
}

// DocumentStore accesses session-bound parsed documents.
type DocumentStore interface {
	Add(ctx context.Context, doc *models.SessionDocument) (int64, error)
	BySession(ctx context.Context, sessionID string) ([]models.SessionDocument, error)
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
