package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
)

type VerifyHandler struct{}

func NewVerifyHandler() *VerifyHandler {
	return &VerifyHandler{}
}

// Verify recomputes the placement for a seed pair so a user can check a
// prediction after the fact.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req struct {
		ServerSeed string `json:"server_seed" binding:"required"`
		ClientSeed string `json:"client_seed"`
		Nonce      *int64 `json:"nonce" binding:"required,min=0"`
		MineCount  int    `json:"mine_count" binding:"required,min=3,max=24"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if req.ClientSeed == "" {
		req.ClientSeed = models.DefaultClientSeed
	}

	placement := services.PlaceMines(req.ServerSeed, req.ClientSeed, *req.Nonce, req.MineCount)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"verification": gin.H{
			"server_seed":     req.ServerSeed,
			"client_seed":     req.ClientSeed,
			"nonce":           *req.Nonce,
			"mine_count":      req.MineCount,
			"calculated_hash": placement.Digest,
			"bombs":           placement.Bombs,
			"bombs_placed":    placement.BombsPlaced(),
			"safe_tiles":      placement.SafeTiles,
		},
	})
}
