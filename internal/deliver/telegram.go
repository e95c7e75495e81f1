package deliver

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rileyhilliard/dockerstats/internal/errors"
)

// photoName is the upload file name shown in the chat.
const photoName = "dockerstats.png"

// Telegram posts charts as photos to one chat or channel.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot against the Telegram Bot API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, chatID, tgbotapi.APIEndpoint)
}

// NewTelegramWithEndpoint is NewTelegram against a custom Bot API server.
// endpoint is a format string taking the token and the method name.
func NewTelegramWithEndpoint(token string, chatID int64, endpoint string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDeliver,
			"Cannot connect the Telegram bot",
			"Check DS_TOKEN and network access to the Bot API")
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Deliver uploads image as a photo with caption.
func (t *Telegram) Deliver(ctx context.Context, image []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{Name: photoName, Bytes: image})
	msg.Caption = caption
	if _, err := t.bot.Send(msg); err != nil {
		return errors.WrapWithCode(err, errors.ErrDeliver,
			fmt.Sprintf("Cannot send chart to chat %d", t.chatID),
			"Make sure the bot is a member of the channel and may post photos")
	}
	return nil
}

// Username returns the bot account name.
func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

// ChatTitle looks up the target chat, which proves the bot can see it.
func (t *Telegram) ChatTitle() (string, error) {
	chat, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: t.chatID},
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrDeliver,
			fmt.Sprintf("The bot cannot see chat %d", t.chatID),
			"Add the bot to the channel and check DS_CHANNEL")
	}
	if chat.Title != "" {
		return chat.Title, nil
	}
	return chat.UserName, nil
}
