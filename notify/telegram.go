package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram Gateway, the recipient is a chat id
type Telegram struct {
	api *tgbotapi.BotAPI
}

// NewTelegram gateway for a bot token. An empty endpoint uses the public bot
// API. No request is made until the first push.
func NewTelegram(token string, endpoint string) *Telegram {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
		Buffer: 100,
	}
	api.SetAPIEndpoint(endpoint)

	return &Telegram{api: api}
}

// Name of the gateway
func (t *Telegram) Name() string {
	return "telegram"
}

// Push a payload to the chat named by recipient
func (t *Telegram) Push(ctx context.Context, recipient string, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return &RejectedError{Status: http.StatusBadRequest, Body: fmt.Sprintf("invalid telegram chat id %q", recipient)}
	}

	_, err = t.api.Send(telegramMessage(chatID, payload))
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &RejectedError{Status: apiErr.Code, Body: apiErr.Message}
	}

	var apiErrValue tgbotapi.Error
	if errors.As(err, &apiErrValue) {
		return &RejectedError{Status: apiErrValue.Code, Body: apiErrValue.Message}
	}

	return fmt.Errorf("failed to push to telegram: %w", err)
}

func telegramMessage(chatID int64, payload Payload) tgbotapi.MessageConfig {
	if payload.Card == nil {
		return tgbotapi.NewMessage(chatID, payload.Text)
	}

	card := payload.Card

	msg := tgbotapi.NewMessage(chatID, "<b>"+html.EscapeString(card.Header)+"</b>\n\n"+html.EscapeString(card.Body))
	msg.ParseMode = tgbotapi.ModeHTML

	if len(card.Buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(card.Buttons))
		for _, button := range card.Buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
		}

		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}

	return msg
}
