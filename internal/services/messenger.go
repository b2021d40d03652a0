package services

import (
	"context"

	"mines-predictor-bot/internal/models"
)

// Messenger is the chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts models.MessageOptions) (int, error)
	SendImage(ctx context.Context, chatID int64, img models.SendImage) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, opts models.MessageOptions) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AcknowledgeCallback(ctx context.Context, callbackID string) error
}

// Renderer draws the board with the given tiles marked safe.
type Renderer interface {
	Render(ctx context.Context, revealed []int) ([]byte, error)
}
