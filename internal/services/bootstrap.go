package services

import (
	"context"
	"fmt"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/models"
)

// Bootstrapper seeds an empty key store with the default inventory.
type Bootstrapper struct {
	keys     KeyStore
	defaults []models.KeyRecord
	log      logging.Logger
}

func NewBootstrapper(keys KeyStore, log logging.Logger) *Bootstrapper {
	return &Bootstrapper{
		keys:     keys,
		defaults: models.DefaultKeys,
		log:      log,
	}
}

// Ensure is safe to call on every update. Two callers racing on an empty
// store both write the same records, which the stores treat as upserts.
func (b *Bootstrapper) Ensure(ctx context.Context) (bool, error) {
	n, err := b.keys.CountKeys(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count keys: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	b.log.Info(ctx, "no existing keys found, populating default keys", "count", len(b.defaults))

	if err := b.keys.PutKeys(ctx, b.defaults); err != nil {
		return false, fmt.Errorf("failed to insert default keys: %w", err)
	}

	return true, nil
}
