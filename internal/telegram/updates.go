package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
)

// EventFromUpdate maps an update to a flow event. Updates without a sender,
// without text, or of kinds the bot does not handle yield false.
func EventFromUpdate(u tgbotapi.Update) (models.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return nil, false
		}
		return models.CallbackEvent{
			CallbackID: cq.ID,
			Data:       cq.Data,
			ChatID:     cq.Message.Chat.ID,
			UserID:     cq.From.ID,
			MessageID:  cq.Message.MessageID,
		}, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return nil, false
	}

	if msg.IsCommand() && msg.Command() == services.CommandStart {
		return models.CommandEvent{
			Command:   services.CommandStart,
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			MessageID: msg.MessageID,
		}, true
	}

	// Any other command is ordinary input; a seed may well start with "/".
	return models.TextEvent{
		Text:      msg.Text,
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
	}, true
}

type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.Event) error
}

// Poll reads updates with long polling until ctx is done.
func Poll(ctx context.Context, bot *tgbotapi.BotAPI, h EventHandler, log logging.Logger) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	updates := bot.GetUpdatesChan(cfg)
	defer bot.StopReceivingUpdates()

	log.Info(ctx, "polling for updates", "bot", bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			Dispatch(ctx, h, u, log)
		}
	}
}

// Dispatch runs one update through h and logs the outcome.
func Dispatch(ctx context.Context, h EventHandler, u tgbotapi.Update, log logging.Logger) {
	ev, ok := EventFromUpdate(u)
	if !ok {
		log.Debug(ctx, "ignoring update", "update_id", u.UpdateID)
		return
	}
	if err := h.HandleEvent(ctx, ev); err != nil {
		log.Error(ctx, "error processing update", "update_id", u.UpdateID, "error", err)
	}
}
