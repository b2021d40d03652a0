package services_test

import (
	"context"
	"errors"
	"sync"

	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/storage/memory"
)

var errBackend = errors.New("backend unavailable")

// faultyStore fails selected operations of an otherwise working memory store.
type faultyStore struct {
	*memory.Store

	loadErr  error
	saveErr  error
	keyErr   error
	adminErr error
	actErr   error

	saves []models.ConversationState
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New()}
}

func (s *faultyStore) LoadState(ctx context.Context, userID int64) (models.ConversationState, error) {
	if s.loadErr != nil {
		return models.Idle{}, s.loadErr
	}
	return s.Store.LoadState(ctx, userID)
}

func (s *faultyStore) SaveState(ctx context.Context, userID int64, st models.ConversationState) error {
	s.saves = append(s.saves, st)
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.SaveState(ctx, userID, st)
}

func (s *faultyStore) CountKeys(ctx context.Context) (int64, error) {
	if s.keyErr != nil {
		return 0, s.keyErr
	}
	return s.Store.CountKeys(ctx)
}

func (s *faultyStore) GetKey(ctx context.Context, name string) (models.KeyRecord, error) {
	if s.keyErr != nil {
		return models.KeyRecord{}, s.keyErr
	}
	return s.Store.GetKey(ctx, name)
}

func (s *faultyStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if s.adminErr != nil {
		return false, s.adminErr
	}
	return s.Store.IsAdmin(ctx, userID)
}

func (s *faultyStore) GetActivation(ctx context.Context, userID int64) (models.Activation, error) {
	if s.actErr != nil {
		return models.Activation{}, s.actErr
	}
	return s.Store.GetActivation(ctx, userID)
}

type fakeRenderer struct {
	img   []byte
	err   error
	calls [][]int
}

func (r *fakeRenderer) Render(_ context.Context, revealed []int) ([]byte, error) {
	r.calls = append(r.calls, revealed)
	if r.err != nil {
		return nil, r.err
	}
	return r.img, nil
}

// call is one Messenger invocation as seen by the fake.
type call struct {
	Method    string
	ChatID    int64
	MessageID int
	Text      string
	Image     models.SendImage
	Options   models.MessageOptions
}

type fakeMessenger struct {
	mu     sync.Mutex
	nextID int
	calls  []call
	err    error
}

func (m *fakeMessenger) record(c call) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	return 1000 + m.nextID, nil
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string, opts models.MessageOptions) (int, error) {
	return m.record(call{Method: "SendText", ChatID: chatID, Text: text, Options: opts})
}

func (m *fakeMessenger) SendImage(_ context.Context, chatID int64, img models.SendImage) (int, error) {
	return m.record(call{Method: "SendImage", ChatID: chatID, Image: img, Text: img.Caption})
}

func (m *fakeMessenger) EditText(_ context.Context, chatID int64, messageID int, text string, opts models.MessageOptions) error {
	_, err := m.record(call{Method: "EditText", ChatID: chatID, MessageID: messageID, Text: text, Options: opts})
	return err
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := m.record(call{Method: "DeleteMessage", ChatID: chatID, MessageID: messageID})
	return err
}

func (m *fakeMessenger) AcknowledgeCallback(_ context.Context, callbackID string) error {
	_, err := m.record(call{Method: "AcknowledgeCallback", Text: callbackID})
	return err
}

func (m *fakeMessenger) methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Method)
	}
	return out
}

type fakeBroadcaster struct {
	predictions []*models.Prediction
	activations []models.ActivationResult
}

func (b *fakeBroadcaster) BroadcastPrediction(p *models.Prediction) {
	b.predictions = append(b.predictions, p)
}

func (b *fakeBroadcaster) BroadcastActivation(_ *models.Activation, result models.ActivationResult) {
	b.activations = append(b.activations, result)
}
