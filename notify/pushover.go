package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/gregdel/pushover"
)

type pushoverSender interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

// Pushover Gateway, the recipient is a pushover user or group key
type Pushover struct {
	app pushoverSender
}

// NewPushover gateway for the application token
func NewPushover(token string) *Pushover {
	return &Pushover{app: pushover.New(token)}
}

// Name of the gateway
func (p *Pushover) Name() string {
	return "pushover"
}

// Push a payload to recipient
func (p *Pushover) Push(ctx context.Context, recipient string, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.app.SendMessage(pushoverMessage(payload), pushover.NewRecipient(recipient))
	if err == nil {
		return nil
	}

	var apiErrors pushover.Errors
	switch {
	case errors.As(err, &apiErrors):
		return &RejectedError{Status: http.StatusBadRequest, Body: apiErrors.Error()}
	case errors.Is(err, pushover.ErrInvalidRecipientToken),
		errors.Is(err, pushover.ErrEmptyRecipientToken),
		errors.Is(err, pushover.ErrMessageTooLong),
		errors.Is(err, pushover.ErrMessageTitleTooLong):
		return &RejectedError{Status: http.StatusBadRequest, Body: err.Error()}
	}

	return fmt.Errorf("failed to push to pushover: %w", err)
}

func pushoverMessage(payload Payload) *pushover.Message {
	if payload.Card == nil {
		return pushover.NewMessage(payload.Text)
	}

	card := payload.Card

	labels := make([]string, 0, len(card.Buttons))
	for _, button := range card.Buttons {
		labels = append(labels, "<b>"+html.EscapeString(button.Label)+"</b>")
	}

	body := html.EscapeString(card.Body)
	if len(labels) > 0 {
		body += "\n\n" + fmt.Sprintf(`<font color="%s">Reply: %s</font>`, card.HeaderColor, strings.Join(labels, " / "))
	}

	message := pushover.NewMessageWithTitle(body, card.Header)
	message.HTML = true
	if card.Urgent {
		message.Priority = pushover.PriorityHigh
	}

	return message
}
