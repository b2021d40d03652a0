package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mines-predictor-bot/internal/models"
)

// ActivationGate decides who may receive a prediction.
type ActivationGate struct {
	keys        KeyStore
	activations ActivationStore
	adminKey    string
}

func NewActivationGate(keys KeyStore, activations ActivationStore, adminKey string) *ActivationGate {
	return &ActivationGate{
		keys:        keys,
		activations: activations,
		adminKey:    models.NormalizeKey(adminKey),
	}
}

// IsPremium is true for admins, and for users whose key has not expired at
// now. The expiry instant itself counts as expired.
func (g *ActivationGate) IsPremium(ctx context.Context, userID int64, now time.Time) (bool, error) {
	status, err := g.Status(ctx, userID, now)
	if err != nil {
		return false, err
	}
	return status.Premium, nil
}

// Status reports the activation details behind IsPremium.
func (g *ActivationGate) Status(ctx context.Context, userID int64, now time.Time) (*models.UserStatus, error) {
	status := &models.UserStatus{UserID: userID}

	admin, err := g.activations.IsAdmin(ctx, userID)
	if err != nil {
		return nil, models.PersistenceError("check admin", err)
	}
	status.Admin = admin

	act, err := g.activations.GetActivation(ctx, userID)
	if admin {
		// The activation record is detail only; admins are premium regardless.
		status.Premium = true
		if err == nil {
			status.Activation = &act
		}
		return status, nil
	}
	if errors.Is(err, models.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, models.PersistenceError("get activation", err)
	}
	status.Activation = &act

	key, err := g.keys.GetKey(ctx, act.KeyName)
	if errors.Is(err, models.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, models.PersistenceError("get key", err)
	}

	expiresAt := act.ExpiresAt(key)
	status.ExpiresAt = &expiresAt
	status.Premium = now.Before(expiresAt)

	return status, nil
}

// Activate applies a key entered by the user. Unknown keys change nothing.
func (g *ActivationGate) Activate(ctx context.Context, userID int64, key string, now time.Time) (models.ActivationResult, error) {
	name := models.NormalizeKey(key)
	if name == "" {
		return models.ActivationInvalidKey, nil
	}

	if name == g.adminKey {
		if err := g.activations.AddAdmin(ctx, userID); err != nil {
			return models.ActivationInvalidKey, models.PersistenceError("add admin", err)
		}
		act := models.Activation{UserID: userID, KeyName: name, ActivatedAt: now}
		if err := g.activations.PutActivation(ctx, act); err != nil {
			return models.ActivationInvalidKey, models.PersistenceError("put activation", err)
		}
		return models.ActivationAdmin, nil
	}

	if _, err := g.keys.GetKey(ctx, name); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ActivationInvalidKey, nil
		}
		return models.ActivationInvalidKey, models.PersistenceError("get key", err)
	}

	act := models.Activation{UserID: userID, KeyName: name, ActivatedAt: now}
	if err := g.activations.PutActivation(ctx, act); err != nil {
		return models.ActivationInvalidKey, models.PersistenceError("put activation", err)
	}

	return models.ActivationActivated, nil
}

// AddKey registers a new key. An existing name is never given a new duration.
func (g *ActivationGate) AddKey(ctx context.Context, rec models.KeyRecord) (models.KeyRecord, error) {
	rec.Name = models.NormalizeKey(rec.Name)
	if rec.Name == "" || rec.DurationDays <= 0 {
		return models.KeyRecord{}, fmt.Errorf("invalid key record: %+v", rec)
	}
	if rec.Name == g.adminKey {
		return models.KeyRecord{}, fmt.Errorf("key name %s is reserved", rec.Name)
	}

	existing, err := g.keys.GetKey(ctx, rec.Name)
	if err == nil {
		if existing.DurationDays != rec.DurationDays {
			return existing, ErrKeyExists
		}
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.KeyRecord{}, models.PersistenceError("get key", err)
	}

	if err := g.keys.PutKeys(ctx, []models.KeyRecord{rec}); err != nil {
		return models.KeyRecord{}, models.PersistenceError("put keys", err)
	}
	return rec, nil
}

var ErrKeyExists = errors.New("key already exists with a different duration")
