// Package telegram adapts the Bot API client to the services.Messenger
// interface and turns raw updates into flow events.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
)

var _ services.Messenger = (*Messenger)(nil)

type Messenger struct {
	bot *tgbotapi.BotAPI
}

func NewMessenger(bot *tgbotapi.BotAPI) *Messenger {
	return &Messenger{bot: bot}
}

// NewBot connects with token. endpoint may be empty for the public Bot API.
func NewBot(token, endpoint string) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return bot, nil
}

// The Bot API client has no context support; a cancelled ctx stops the call
// before it is made.

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, opts models.MessageOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if opts.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if kb := inlineKeyboard(opts.Keyboard); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := m.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (m *Messenger) SendImage(ctx context.Context, chatID int64, img models.SendImage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var file tgbotapi.RequestFileData
	if len(img.Image) > 0 {
		file = tgbotapi.FileBytes{Name: "prediction.png", Bytes: img.Image}
	} else {
		file = tgbotapi.FileURL(img.URL)
	}

	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = img.Caption
	if img.Options.HTML {
		photo.ParseMode = tgbotapi.ModeHTML
	}
	if kb := inlineKeyboard(img.Options.Keyboard); kb != nil {
		photo.ReplyMarkup = *kb
	}

	sent, err := m.bot.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("failed to send photo: %w", err)
	}
	return sent.MessageID, nil
}

func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string, opts models.MessageOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if opts.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	edit.ReplyMarkup = inlineKeyboard(opts.Keyboard)

	if _, err := m.bot.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (m *Messenger) AcknowledgeCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func inlineKeyboard(kb models.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.CallbackData))
			}
		}
		rows = append(rows, row)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
