package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
)

type AdminStore interface {
	services.KeyStore
	services.PredictionLog
}

type AdminHandler struct {
	gate        *services.ActivationGate
	store       AdminStore
	jwtService  *services.JWTService
	adminSecret string
}

func NewAdminHandler(gate *services.ActivationGate, store AdminStore, jwtService *services.JWTService, adminSecret string) *AdminHandler {
	return &AdminHandler{
		gate:        gate,
		store:       store,
		jwtService:  jwtService,
		adminSecret: adminSecret,
	}
}

// Login exchanges the configured admin secret for a bearer token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if h.adminSecret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.adminSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, claims, err := h.jwtService.GenerateToken(services.RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Time,
	})
}

func (h *AdminHandler) ListKeys(c *gin.Context) {
	keys, err := h.store.ListKeys(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list keys", "details": err.Error()})
		return
	}

	if keys == nil {
		keys = []models.KeyRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (h *AdminHandler) AddKey(c *gin.Context) {
	var req struct {
		Name         string `json:"key_name" binding:"required"`
		DurationDays int    `json:"duration_days" binding:"required,min=1,max=3650"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	rec, err := h.gate.AddKey(c.Request.Context(), models.KeyRecord{Name: req.Name, DurationDays: req.DurationDays})
	switch {
	case errors.Is(err, services.ErrKeyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Key already exists", "key": rec})
		return
	case errors.Is(err, models.ErrPersistenceFailure):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add key"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": rec})
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, err := models.ParseUserID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.gate.Status(c.Request.Context(), userID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *AdminHandler) GetUserPredictions(c *gin.Context) {
	userID, err := models.ParseUserID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	predictions, err := h.store.RecentPredictions(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get prediction history",
			"details": err.Error(),
		})
		return
	}

	if predictions == nil {
		predictions = []*models.Prediction{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "predictions": predictions})
}
