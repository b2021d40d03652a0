package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mines-predictor-bot/internal/config"
	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/middleware"
	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
	"mines-predictor-bot/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(r http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerify(t *testing.T) {
	r := gin.New()
	r.POST("/api/verify", NewVerifyHandler().Verify)

	w := doJSON(r, http.MethodPost, "/api/verify", gin.H{"server_seed": "abc", "nonce": 0, "mine_count": 3}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Verification struct {
			Hash       string `json:"calculated_hash"`
			ClientSeed string `json:"client_seed"`
			Bombs      []int  `json:"bombs"`
			SafeTiles  []int  `json:"safe_tiles"`
		} `json:"verification"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cc3053f5ea13eb2f427ebe3ed6f325370b7c90eb33da4e7c8ce93b62044e4033", resp.Verification.Hash)
	assert.Equal(t, models.DefaultClientSeed, resp.Verification.ClientSeed)
	assert.Equal(t, []int{19, 11, 4}, resp.Verification.Bombs)
	assert.Len(t, resp.Verification.SafeTiles, 22)

	for _, body := range []gin.H{
		{"nonce": 0, "mine_count": 3},
		{"server_seed": "abc", "mine_count": 3},
		{"server_seed": "abc", "nonce": 0, "mine_count": 2},
		{"server_seed": "abc", "nonce": 0, "mine_count": 25},
	} {
		w := doJSON(r, http.MethodPost, "/api/verify", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []models.Event
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func TestWebhook(t *testing.T) {
	events := &recordingHandler{}
	r := gin.New()
	r.POST("/telegram/webhook", NewWebhookHandler(events, "hook-secret", logging.Discard()).HandleUpdate)

	update := `{"update_id":1,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":100,"type":"private"},"date":0,"text":"seed123"}}`
	post := func(secret, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(headerWebhookSecret, secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post("", update))
	assert.Equal(t, http.StatusUnauthorized, post("wrong", update))
	assert.Empty(t, events.events)

	assert.Equal(t, http.StatusOK, post("hook-secret", update))
	require.Len(t, events.events, 1)
	assert.Equal(t, models.TextEvent{Text: "seed123", ChatID: 100, UserID: 42, MessageID: 5}, events.events[0])

	assert.Equal(t, http.StatusOK, post("hook-secret", `{"update_id":2,"edited_message":{}}`))
	assert.Equal(t, http.StatusOK, post("hook-secret", `not json`))
	assert.Len(t, events.events, 1)
}

func newAdminRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.PutKeys(context.Background(), models.DefaultKeys))

	jwtService := services.NewJWTService(&config.Config{JWTSecret: "jwt", JWTExpiry: time.Hour})
	gate := services.NewActivationGate(store, store, models.DefaultAdminActivationKey)
	h := NewAdminHandler(gate, store, jwtService, "let-me-in")

	r := gin.New()
	r.POST("/auth/admin", h.Login)
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtService))
	{
		admin.GET("/keys", h.ListKeys)
		admin.POST("/keys", h.AddKey)
		admin.GET("/users/:id", h.GetUser)
		admin.GET("/users/:id/predictions", h.GetUserPredictions)
	}
	return r, store
}

func login(t *testing.T, r http.Handler) http.Header {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/auth/admin", gin.H{"secret": "let-me-in"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	return http.Header{"Authorization": {"Bearer " + resp.Token}}
}

func TestAdmin_Login(t *testing.T) {
	r, _ := newAdminRouter(t)

	w := doJSON(r, http.MethodPost, "/auth/admin", gin.H{"secret": "guess"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/keys", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_Keys(t *testing.T) {
	r, store := newAdminRouter(t)
	auth := login(t, r)

	w := doJSON(r, http.MethodGet, "/admin/keys", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Keys []models.KeyRecord `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Keys, len(models.DefaultKeys))

	w = doJSON(r, http.MethodPost, "/admin/keys", gin.H{"key_name": "omega-1", "duration_days": 3}, auth)
	assert.Equal(t, http.StatusCreated, w.Code)
	k, err := store.GetKey(context.Background(), "OMEGA-1")
	require.NoError(t, err)
	assert.Equal(t, 3, k.DurationDays)

	w = doJSON(r, http.MethodPost, "/admin/keys", gin.H{"key_name": "ALPHA-1122", "duration_days": 90}, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/keys", gin.H{"key_name": "SUPER-ADMIN-2024", "duration_days": 9}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/keys", gin.H{"key_name": "X", "duration_days": 0}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_Users(t *testing.T) {
	r, store := newAdminRouter(t)
	auth := login(t, r)
	ctx := context.Background()

	require.NoError(t, store.PutActivation(ctx, models.Activation{UserID: 42, KeyName: "IOTA-1357", ActivatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.RecordPrediction(ctx, &models.Prediction{ID: "pred_a", UserID: 42, MineCount: 3}))

	w := doJSON(r, http.MethodGet, "/admin/users/42", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.UserStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Premium)
	assert.False(t, status.Admin)
	require.NotNil(t, status.ExpiresAt)

	w = doJSON(r, http.MethodGet, "/admin/users/42/predictions?limit=5", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Predictions []models.Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Predictions, 1)
	assert.Equal(t, "pred_a", hist.Predictions[0].ID)

	w = doJSON(r, http.MethodGet, "/admin/users/abc", nil, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketHub_LiveFeed(t *testing.T) {
	hub := NewWebSocketHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/admin/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/admin/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// A round trip proves the client is registered before broadcasting.
	require.NoError(t, conn.WriteJSON(Message{Type: "PING"}))
	var pong Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "PONG", pong.Type)

	hub.BroadcastPrediction(&models.Prediction{ID: "pred_live", UserID: 42})

	var msg struct {
		Type string            `json:"type"`
		Data models.Prediction `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "PREDICTION", msg.Type)
	assert.Equal(t, "pred_live", msg.Data.ID)

	hub.BroadcastActivation(&models.Activation{UserID: 42, KeyName: "ALPHA-1122"}, models.ActivationActivated)

	var act struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&act))
	assert.Equal(t, "ACTIVATION", act.Type)
	assert.Equal(t, "ALPHA-1122", act.Data["key_name"])
}

func TestWebSocketHub_StoppedHubRejectsClients(t *testing.T) {
	hub := NewWebSocketHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	handled := make(chan struct{})
	r := gin.New()
	r.GET("/admin/ws", func(c *gin.Context) {
		defer close(handled)
		hub.HandleWebSocket(c)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/admin/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("handler blocked on a stopped hub")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
