// Package memory is a process-local store for tests and single-instance runs.
// State does not survive a restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"mines-predictor-bot/internal/models"
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

type Store struct {
	mu          sync.RWMutex
	states      map[int64][]byte
	keys        map[string]models.KeyRecord
	activations map[int64]models.Activation
	admins      map[int64]struct{}
	predictions map[int64][]*models.Prediction
	limits      map[string]*rateWindow

	historyLimit int
	now          func() time.Time
}

func New() *Store {
	return &Store{
		states:       make(map[int64][]byte),
		keys:         make(map[string]models.KeyRecord),
		activations:  make(map[int64]models.Activation),
		admins:       make(map[int64]struct{}),
		predictions:  make(map[int64][]*models.Prediction),
		limits:       make(map[string]*rateWindow),
		historyLimit: 100,
		now:          time.Now,
	}
}

func (s *Store) LoadState(_ context.Context, userID int64) (models.ConversationState, error) {
	s.mu.RLock()
	data := s.states[userID]
	s.mu.RUnlock()

	return models.DecodeState(data)
}

func (s *Store) SaveState(_ context.Context, userID int64, state models.ConversationState) error {
	data, err := models.EncodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.states[userID] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) CountKeys(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.keys)), nil
}

func (s *Store) PutKeys(_ context.Context, keys []models.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[k.Name] = k
	}
	return nil
}

func (s *Store) GetKey(_ context.Context, name string) (models.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[name]
	if !ok {
		return models.KeyRecord{}, models.ErrNotFound
	}
	return k, nil
}

func (s *Store) ListKeys(_ context.Context) ([]models.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.KeyRecord, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b models.KeyRecord) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

// DeleteKey removes a key record; users who activated it lose premium.
func (s *Store) DeleteKey(_ context.Context, name string) {
	s.mu.Lock()
	delete(s.keys, name)
	s.mu.Unlock()
}

func (s *Store) GetActivation(_ context.Context, userID int64) (models.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activations[userID]
	if !ok {
		return models.Activation{}, models.ErrNotFound
	}
	return a, nil
}

func (s *Store) PutActivation(_ context.Context, a models.Activation) error {
	s.mu.Lock()
	s.activations[a.UserID] = a
	s.mu.Unlock()
	return nil
}

func (s *Store) IsAdmin(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok, nil
}

func (s *Store) AddAdmin(_ context.Context, userID int64) error {
	s.mu.Lock()
	s.admins[userID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) RecordPrediction(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]*models.Prediction{p}, s.predictions[p.UserID]...)
	if len(list) > s.historyLimit {
		list = list[:s.historyLimit]
	}
	s.predictions[p.UserID] = list
	return nil
}

func (s *Store) RecentPredictions(_ context.Context, userID int64, limit int64) ([]*models.Prediction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.predictions[userID]
	if int64(len(list)) > limit {
		list = list[:limit]
	}
	return slices.Clone(list), nil
}

// CheckRateLimit counts calls per subject/action in fixed windows.
func (s *Store) CheckRateLimit(_ context.Context, subject string, action string, limit int, window time.Duration) (bool, error) {
	key := subject + ":" + action
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.limits[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		s.limits[key] = w
	}
	w.count++

	return w.count <= limit, nil
}

func (s *Store) Close() error {
	return nil
}
