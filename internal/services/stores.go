package services

import (
	"context"
	"time"

	"mines-predictor-bot/internal/models"
)

// StateStore persists one ConversationState per user.
type StateStore interface {
	LoadState(ctx context.Context, userID int64) (models.ConversationState, error)
	SaveState(ctx context.Context, userID int64, state models.ConversationState) error
}

// KeyStore holds the activation key inventory. Names are unique.
type KeyStore interface {
	CountKeys(ctx context.Context) (int64, error)
	// PutKeys inserts records, replacing same-named ones.
	PutKeys(ctx context.Context, keys []models.KeyRecord) error
	// GetKey returns models.ErrNotFound for unknown names.
	GetKey(ctx context.Context, name string) (models.KeyRecord, error)
	ListKeys(ctx context.Context) ([]models.KeyRecord, error)
}

// ActivationStore holds user activations and the admin set.
type ActivationStore interface {
	// GetActivation returns models.ErrNotFound when the user never activated.
	GetActivation(ctx context.Context, userID int64) (models.Activation, error)
	PutActivation(ctx context.Context, a models.Activation) error
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	AddAdmin(ctx context.Context, userID int64) error
}

// PredictionLog keeps recent predictions per user, newest first on read.
type PredictionLog interface {
	RecordPrediction(ctx context.Context, p *models.Prediction) error
	RecentPredictions(ctx context.Context, userID int64, limit int64) ([]*models.Prediction, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, subject string, action string, limit int, window time.Duration) (bool, error)
}

// Store is everything a storage driver provides.
type Store interface {
	StateStore
	KeyStore
	ActivationStore
	PredictionLog
	Close() error
}

const maxPredictionHistory = 100
